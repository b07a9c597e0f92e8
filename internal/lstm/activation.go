package lstm

import (
	"fmt"
	"math"
	"strings"
)

type activation func(float64) float64

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func elu(x float64) float64 {
	if x > 0 {
		return x
	}
	return math.Expm1(x)
}

func relu(x float64) float64 {
	return math.Max(0, x)
}

func linear(x float64) float64 {
	return x
}

var activations = map[string]activation{
	"tanh":    math.Tanh,
	"elu":     elu,
	"relu":    relu,
	"sigmoid": sigmoid,
	"linear":  linear,
}

func lookupActivation(name string) (activation, error) {
	act, ok := activations[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown activation %q", name)
	}
	return act, nil
}

// ValidActivation reports whether name is supported
func ValidActivation(name string) bool {
	_, err := lookupActivation(name)
	return err == nil
}
