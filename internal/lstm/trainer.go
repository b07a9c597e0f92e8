package lstm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
	"pm10cast/internal/models"
)

// Trainer fits Networks in process
type Trainer struct{}

// NewTrainer returns the local training backend
func NewTrainer() *Trainer {
	return &Trainer{}
}

func validate(hp models.Hyperparams) error {
	switch {
	case hp.Units < 1:
		return fmt.Errorf("units must be >= 1, got %d", hp.Units)
	case hp.WindowWidth < 1:
		return fmt.Errorf("window_width must be >= 1, got %d", hp.WindowWidth)
	case hp.FeatureCount < 1:
		return fmt.Errorf("feature_count must be >= 1, got %d", hp.FeatureCount)
	case hp.DropoutRate < 0 || hp.DropoutRate >= 1:
		return fmt.Errorf("dropout_rate must be in [0, 1), got %v", hp.DropoutRate)
	case hp.L2RegStrength < 0:
		return fmt.Errorf("l2_reg_strength must be >= 0, got %v", hp.L2RegStrength)
	}
	_, err := lookupActivation(hp.Activation)
	return err
}

// newNetwork draws the fixed recurrent weights. Kernels use Glorot-uniform
// limits and the forget gate bias starts at 1.
func newNetwork(hp models.Hyperparams) (*Network, error) {
	act, err := lookupActivation(hp.Activation)
	if err != nil {
		return nil, err
	}

	u, f := hp.Units, hp.FeatureCount
	rng := rand.New(rand.NewPCG(uint64(hp.Seed), 0x9e3779b97f4a7c15))

	uniform := func(n int, limit float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = (2*rng.Float64() - 1) * limit
		}
		return out
	}

	bias := make([]float64, 4*u)
	for j := u; j < 2*u; j++ {
		bias[j] = 1
	}

	return &Network{
		Version:     formatVersion,
		Hyperparams: hp,
		Kernel:      uniform(4*u*f, math.Sqrt(6/float64(f+4*u))),
		Recurrent:   uniform(4*u*u, math.Sqrt(6/float64(u+4*u))),
		Bias:        bias,
		Readout:     make([]float64, u),
		act:         act,
	}, nil
}

// Fit draws the recurrent layer and solves the readout:
//
//	minimize  mean((y - w·h - b)²) + l2·|w|²
//
// where h is the dropout-masked final hidden state. Each epoch contributes
// one masked copy of every example to the normal equations.
func (t *Trainer) Fit(ctx context.Context, examples []models.WindowedExample, hp models.Hyperparams) (forecast.Model, error) {
	if err := validate(hp); err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, errors.New("no training examples")
	}

	want := hp.WindowWidth * hp.FeatureCount
	for i, ex := range examples {
		if len(ex.History) != want {
			return nil, fmt.Errorf("example %d has %d values, want %d", i, len(ex.History), want)
		}
	}

	net, err := newNetwork(hp)
	if err != nil {
		return nil, err
	}

	u := hp.Units
	states := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		h, err := net.hidden(ex.History)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		states[i] = h
		y[i] = ex.Target
	}

	epochs := hp.Epochs
	if epochs < 1 {
		epochs = 1
	}
	keep := 1 - hp.DropoutRate
	maskRng := rand.New(rand.NewPCG(uint64(hp.Seed), 0x6a09e667f3bcc909))

	// Rows are [h..., 1]; the trailing one carries the readout bias.
	gram := mat.NewSymDense(u+1, nil)
	rhs := mat.NewVecDense(u+1, nil)
	scale := 1 / float64(epochs*len(examples))

	design := mat.NewDense(len(examples), u+1, nil)
	target := mat.NewVecDense(len(examples), y)
	var contrib mat.VecDense

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i, h := range states {
			for j := 0; j < u; j++ {
				v := h[j]
				if hp.DropoutRate > 0 {
					if maskRng.Float64() < hp.DropoutRate {
						v = 0
					} else {
						v /= keep
					}
				}
				design.Set(i, j, v)
			}
			design.Set(i, u, 1)
		}

		gram.SymRankK(gram, scale, design.T())
		contrib.MulVec(design.T(), target)
		rhs.AddScaledVec(rhs, scale, &contrib)
	}

	for j := 0; j < u; j++ {
		gram.SetSym(j, j, gram.At(j, j)+hp.L2RegStrength)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, errors.New("readout system is not positive definite; increase l2_reg_strength")
	}

	var w mat.VecDense
	if err := chol.SolveVecTo(&w, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("failed to solve readout: %w", err)
		}
		log.Warnw("readout system is ill-conditioned", "condition", float64(cond))
	}

	for j := 0; j < u; j++ {
		net.Readout[j] = w.AtVec(j)
	}
	net.ReadoutBias = w.AtVec(u)

	log.Debugw("lstm readout fitted", "examples", len(examples), "epochs", epochs, "units", u)
	return net, nil
}
