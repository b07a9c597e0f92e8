package forecast

import "pm10cast/internal/models"

// SplitSequence slides a width-w window over series. inputs[k] is
// series[k:k+w] and targets[k] is series[k+w]; a series no longer than w
// yields nothing.
func SplitSequence(series []float64, w int) (inputs [][]float64, targets []float64, err error) {
	if w < 1 {
		return nil, nil, ErrInvalidWindow
	}

	n := len(series) - w
	if n <= 0 {
		return [][]float64{}, []float64{}, nil
	}

	inputs = make([][]float64, n)
	targets = make([]float64, n)
	for k := 0; k < n; k++ {
		history := make([]float64, w)
		copy(history, series[k:k+w])
		inputs[k] = history
		targets[k] = series[k+w]
	}
	return inputs, targets, nil
}

// Windows is SplitSequence shaped as training examples
func Windows(series []float64, w int) ([]models.WindowedExample, error) {
	inputs, targets, err := SplitSequence(series, w)
	if err != nil {
		return nil, err
	}

	examples := make([]models.WindowedExample, len(inputs))
	for k := range inputs {
		examples[k] = models.WindowedExample{History: inputs[k], Target: targets[k]}
	}
	return examples, nil
}
