package forecast

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

const tolerance = 1e-9

func TestNormalize_Example(t *testing.T) {
	out, mean, stdDev, err := Normalize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if mean != 5 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if math.Abs(stdDev-2.138089935299395) > tolerance {
		t.Errorf("stdDev = %v, want 2.138...", stdDev)
	}
	if math.Abs(out[0]-(-1.403121520040228)) > tolerance {
		t.Errorf("out[0] = %v, want about -1.403", out[0])
	}
}

func TestNormalize_UnitScale(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"small", []float64{1, 2}},
		{"pm10 like", []float64{12, 30, 27, 44, 18, 90, 35, 21, 16, 25}},
		{"negative values", []float64{-3, -1, 0, 2.5, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, _, err := Normalize(tt.values)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			mean, std := stat.MeanStdDev(out, nil)
			if math.Abs(mean) > 1e-9 {
				t.Errorf("normalized mean = %v, want 0", mean)
			}
			if math.Abs(std-1) > 1e-9 {
				t.Errorf("normalized stddev = %v, want 1", std)
			}
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"constant", []float64{5, 5, 5, 5}},
		{"single value", []float64{3}},
		{"empty", nil},
		{"infinite", []float64{1, math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, _, err := Normalize(tt.values)
			if !errors.Is(err, ErrNormalization) {
				t.Fatalf("Normalize() error = %v, want ErrNormalization", err)
			}
			var ne *NormalizationError
			if !errors.As(err, &ne) {
				t.Errorf("Normalize() error is %T, want *NormalizationError", err)
			}
			if out != nil {
				t.Errorf("Normalize() returned %v alongside an error", out)
			}
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	a, m1, s1, _ := Normalize(values)
	b, m2, s2, _ := Normalize(values)

	if m1 != m2 || s1 != s2 {
		t.Fatalf("parameters differ between calls: (%v,%v) vs (%v,%v)", m1, s1, m2, s2)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("out[%d] differs: %v vs %v", i, a[i], b[i])
		}
	}
}
