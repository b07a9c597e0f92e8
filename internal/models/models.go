package models

import "time"

// Reading is one row of a daily PM10 extract
type Reading struct {
	ID            int64     `json:"id,omitempty"`
	Date          time.Time `json:"date"`
	Site          string    `json:"site"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Concentration float64   `json:"concentration"`
}

// NormalizedReading pairs a reading with its z-score
type NormalizedReading struct {
	Reading
	Normalized float64 `json:"normalized"`
}

// Dataset is the merged, normalized view of every configured source
type Dataset struct {
	Readings []NormalizedReading `json:"readings"`
	Mean     float64             `json:"mean"`
	StdDev   float64             `json:"std_dev"`
}

// Series returns the normalized concentration column
func (d *Dataset) Series() []float64 {
	out := make([]float64, len(d.Readings))
	for i, r := range d.Readings {
		out[i] = r.Normalized
	}
	return out
}

// Dates returns the date column
func (d *Dataset) Dates() []time.Time {
	out := make([]time.Time, len(d.Readings))
	for i, r := range d.Readings {
		out[i] = r.Date
	}
	return out
}

// WindowedExample is one (history, next value) training pair
type WindowedExample struct {
	History []float64 `json:"history" msgpack:"history"`
	Target  float64   `json:"target" msgpack:"target"`
}

// Hyperparams are passed through to the trainer unchanged
type Hyperparams struct {
	Units         int     `json:"units" yaml:"units" msgpack:"units"`
	Activation    string  `json:"activation" yaml:"activation" msgpack:"activation"`
	WindowWidth   int     `json:"window_width" yaml:"window_width" msgpack:"window_width"`
	FeatureCount  int     `json:"feature_count" yaml:"feature_count" msgpack:"feature_count"`
	L2RegStrength float64 `json:"l2_reg_strength" yaml:"l2_reg_strength" msgpack:"l2_reg_strength"`
	DropoutRate   float64 `json:"dropout_rate" yaml:"dropout_rate" msgpack:"dropout_rate"`
	Epochs        int     `json:"epochs" yaml:"epochs" msgpack:"epochs"`
	Seed          int64   `json:"seed" yaml:"seed" msgpack:"seed"`
}

// LayerSummary describes one layer of a trained model
type LayerSummary struct {
	Name        string `json:"name"`
	OutputShape string `json:"output_shape"`
	Params      int    `json:"params"`
}

// ModelSummary is the printable description of a model
type ModelSummary struct {
	Layers      []LayerSummary `json:"layers"`
	TotalParams int            `json:"total_params"`
	Hyperparams Hyperparams    `json:"hyperparams"`
}

// PredictionRow is one assembled prediction for display
type PredictionRow struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
	Diff      float64   `json:"diff"`
}

// Metrics holds regression accuracy scores
type Metrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// PredictionResult is the output of one prediction request
type PredictionResult struct {
	Start    int             `json:"start"`
	Stop     int             `json:"stop"`
	ModelKey string          `json:"model_key"`
	Mode     string          `json:"mode"`
	Rows     []PredictionRow `json:"rows"`
	Metrics  Metrics         `json:"metrics"`
}

// Station is a monitoring site aggregated over its readings
type Station struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ReadingCount int     `json:"reading_count"`
	MeanPM10     float64 `json:"mean_pm10"`
	AQI          int32   `json:"aqi"`
	Category     string  `json:"category"`
	Color        string  `json:"color"`
}

// PredictionRun is a persisted prediction request
type PredictionRun struct {
	ID        string          `json:"id"`
	ModelKey  string          `json:"model_key"`
	Start     int             `json:"start"`
	Stop      int             `json:"stop"`
	Mode      string          `json:"mode"`
	Metrics   Metrics         `json:"metrics"`
	CreatedAt time.Time       `json:"created_at"`
	Rows      []PredictionRow `json:"rows,omitempty"`
}
