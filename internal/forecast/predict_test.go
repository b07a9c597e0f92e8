package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"pm10cast/internal/models"
)

// lastValueModel predicts the final element of each input, scaled
type lastValueModel struct {
	scale  float64
	calls  [][]float64
	err    error
	length int
}

func (m *lastValueModel) Predict(inputs [][]float64) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls = inputs
	n := len(inputs)
	if m.length > 0 {
		n = m.length
	}
	out := make([]float64, n)
	for i := 0; i < n && i < len(inputs); i++ {
		out[i] = m.scale * inputs[i][len(inputs[i])-1]
	}
	return out, nil
}

func (m *lastValueModel) Summary() models.ModelSummary   { return models.ModelSummary{} }
func (m *lastValueModel) MarshalBinary() ([]byte, error) { return []byte("last"), nil }

func testSeries(n int) ([]float64, []time.Time) {
	series := make([]float64, n)
	dates := make([]time.Time, n)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range series {
		series[i] = math.Sin(float64(i))
		dates[i] = base.AddDate(0, 0, i)
	}
	return series, dates
}

func TestCheckRange(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		stop    int
		n       int
		wantErr bool
	}{
		{"zero range", 0, 0, 10, true},
		{"stop beyond length", 0, 11, 10, true},
		{"start after stop", 5, 3, 10, true},
		{"negative start", -1, 3, 10, true},
		{"empty series", 0, 1, 0, true},
		{"whole series", 0, 10, 10, false},
		{"single row", 4, 5, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRange(tt.start, tt.stop, tt.n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrRange) {
				t.Errorf("CheckRange() error = %v, want ErrRange", err)
			}
		})
	}
}

func TestPredictor_RangeErrors(t *testing.T) {
	series, dates := testSeries(12)
	p := Predictor{Mode: ModeRaw}

	if _, _, err := p.Predict(&lastValueModel{scale: 1}, series, dates, 0, 0); !errors.Is(err, ErrRange) {
		t.Errorf("Predict(0, 0) error = %v, want ErrRange", err)
	}
	if _, _, err := p.Predict(&lastValueModel{scale: 1}, series, dates, 0, 13); !errors.Is(err, ErrRange) {
		t.Errorf("Predict(0, 13) error = %v, want ErrRange", err)
	}
}

func TestPredictor_RawMode(t *testing.T) {
	series, dates := testSeries(20)
	model := &lastValueModel{scale: 2}
	p := Predictor{Mode: ModeRaw, WindowWidth: 10}

	rows, score, err := p.Predict(model, series, dates, 3, 9)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if len(model.calls) != 6 {
		t.Fatalf("model saw %d inputs, want 6", len(model.calls))
	}
	for i, in := range model.calls {
		if len(in) != 1 || in[0] != series[3+i] {
			t.Errorf("input %d = %v, want [%v]", i, in, series[3+i])
		}
	}

	want, _, _, _ := Normalize(series[3:9])
	for i, r := range rows {
		if !r.Date.Equal(dates[3+i]) {
			t.Errorf("row %d date = %v, want %v", i, r.Date, dates[3+i])
		}
		if r.Actual != series[3+i] {
			t.Errorf("row %d actual = %v, want %v", i, r.Actual, series[3+i])
		}
		// scaling is removed by batch renormalization
		if math.Abs(r.Predicted-want[i]) > tolerance {
			t.Errorf("row %d predicted = %v, want %v", i, r.Predicted, want[i])
		}
		if math.Abs(r.Diff-math.Abs(r.Predicted-r.Actual)) > tolerance {
			t.Errorf("row %d diff = %v, want |p-a|", i, r.Diff)
		}
	}

	if got := Score(rows); got != score {
		t.Errorf("returned score %+v differs from Score(rows) %+v", score, got)
	}
}

func TestPredictor_WindowedMode(t *testing.T) {
	series, dates := testSeries(20)
	model := &lastValueModel{scale: 1}
	p := Predictor{Mode: ModeWindowed, WindowWidth: 4}

	if _, _, err := p.Predict(model, series, dates, 2, 8); !errors.Is(err, ErrRange) {
		t.Fatalf("Predict(start < W) error = %v, want ErrRange", err)
	}

	rows, _, err := p.Predict(model, series, dates, 4, 10)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}
	for i, in := range model.calls {
		if len(in) != 4 {
			t.Fatalf("input %d has length %d, want 4", i, len(in))
		}
		if in[3] != series[4+i-1] {
			t.Errorf("input %d ends with %v, want %v", i, in[3], series[4+i-1])
		}
	}
}

func TestPredictor_SingleRowCannotBeNormalized(t *testing.T) {
	series, dates := testSeries(5)
	_, _, err := Predictor{}.Predict(&lastValueModel{scale: 1}, series, dates, 2, 3)
	if !errors.Is(err, ErrNormalization) {
		t.Errorf("Predict() on one row error = %v, want ErrNormalization", err)
	}
}

func TestPredictor_ModelFailures(t *testing.T) {
	series, dates := testSeries(10)

	boom := errors.New("boom")
	if _, _, err := (Predictor{}).Predict(&lastValueModel{err: boom}, series, dates, 0, 5); !errors.Is(err, boom) {
		t.Errorf("Predict() error = %v, want wrapped model error", err)
	}

	if _, _, err := (Predictor{}).Predict(&lastValueModel{scale: 1, length: 2}, series, dates, 0, 5); err == nil {
		t.Error("Predict() with short model output returned nil error")
	}
}

func TestParseInferenceMode(t *testing.T) {
	tests := []struct {
		in      string
		want    InferenceMode
		wantErr bool
	}{
		{"", ModeRaw, false},
		{"raw", ModeRaw, false},
		{"windowed", ModeWindowed, false},
		{"sliding", "", true},
	}

	for _, tt := range tests {
		got, err := ParseInferenceMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseInferenceMode(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
