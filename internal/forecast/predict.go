package forecast

import (
	"fmt"
	"math"
	"time"

	"pm10cast/internal/models"
)

// InferenceMode selects how model inputs are built from the series
type InferenceMode string

const (
	// ModeRaw feeds each value of series[start:stop] to the model as its own
	// one-step sequence. This matches how the dashboard has always scored models.
	ModeRaw InferenceMode = "raw"
	// ModeWindowed feeds series[t-W:t] to predict row t, matching how the
	// model was trained. Requires start >= W.
	ModeWindowed InferenceMode = "windowed"
)

// ParseInferenceMode accepts "", "raw" or "windowed"
func ParseInferenceMode(s string) (InferenceMode, error) {
	switch InferenceMode(s) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeWindowed:
		return ModeWindowed, nil
	default:
		return "", fmt.Errorf("unknown inference mode %q (allowed: raw, windowed)", s)
	}
}

// CheckRange validates [start, stop) against a series of length n
func CheckRange(start, stop, n int) error {
	switch {
	case start < 0:
		return &RangeError{Start: start, Stop: stop, Length: n, Reason: "start must be >= 0"}
	case stop < 1:
		return &RangeError{Start: start, Stop: stop, Length: n, Reason: "stop must be >= 1"}
	case start >= stop:
		return &RangeError{Start: start, Stop: stop, Length: n, Reason: "start must be < stop"}
	case stop > n:
		return &RangeError{Start: start, Stop: stop, Length: n, Reason: "stop exceeds series length"}
	}
	return nil
}

// Predictor runs a model over an index range and scores the result
type Predictor struct {
	Mode        InferenceMode
	WindowWidth int
}

func (p Predictor) inputs(series []float64, start, stop int) ([][]float64, error) {
	out := make([][]float64, 0, stop-start)
	switch p.Mode {
	case ModeWindowed:
		if p.WindowWidth < 1 {
			return nil, ErrInvalidWindow
		}
		if start < p.WindowWidth {
			return nil, &RangeError{Start: start, Stop: stop, Length: len(series),
				Reason: fmt.Sprintf("windowed inference needs start >= %d", p.WindowWidth)}
		}
		for t := start; t < stop; t++ {
			history := make([]float64, p.WindowWidth)
			copy(history, series[t-p.WindowWidth:t])
			out = append(out, history)
		}
	default:
		for t := start; t < stop; t++ {
			out = append(out, []float64{series[t]})
		}
	}
	return out, nil
}

// Predict runs model over [start, stop), z-scores the predictions against
// their own batch statistics, and pairs them with the normalized actuals.
func (p Predictor) Predict(model Model, series []float64, dates []time.Time, start, stop int) ([]models.PredictionRow, models.Metrics, error) {
	if err := CheckRange(start, stop, len(series)); err != nil {
		return nil, models.Metrics{}, err
	}
	if len(dates) != len(series) {
		return nil, models.Metrics{}, fmt.Errorf("have %d dates for %d values", len(dates), len(series))
	}

	inputs, err := p.inputs(series, start, stop)
	if err != nil {
		return nil, models.Metrics{}, err
	}

	raw, err := model.Predict(inputs)
	if err != nil {
		return nil, models.Metrics{}, fmt.Errorf("model prediction failed: %w", err)
	}
	if len(raw) != len(inputs) {
		return nil, models.Metrics{}, fmt.Errorf("model returned %d predictions for %d inputs", len(raw), len(inputs))
	}

	yhat, _, _, err := Normalize(raw)
	if err != nil {
		return nil, models.Metrics{}, fmt.Errorf("failed to normalize predictions: %w", err)
	}

	rows := make([]models.PredictionRow, len(yhat))
	for i, y := range yhat {
		actual := series[start+i]
		rows[i] = models.PredictionRow{
			Date:      dates[start+i],
			Predicted: y,
			Actual:    actual,
			Diff:      math.Abs(y - actual),
		}
	}

	return rows, Score(rows), nil
}
