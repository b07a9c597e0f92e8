package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Normalize z-scores values against their own mean and sample standard
// deviation. The parameters are returned for display only; every call
// recomputes them.
func Normalize(values []float64) (out []float64, mean, stdDev float64, err error) {
	if len(values) < 2 {
		return nil, 0, 0, &NormalizationError{Count: len(values)}
	}

	mean, stdDev = stat.MeanStdDev(values, nil)
	if stdDev == 0 || math.IsNaN(stdDev) || math.IsInf(stdDev, 0) {
		return nil, mean, stdDev, &NormalizationError{Count: len(values), StdDev: stdDev}
	}

	out = make([]float64, len(values))
	for i, v := range values {
		out[i] = stat.StdScore(v, mean, stdDev)
	}
	return out, mean, stdDev, nil
}
