package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pm10cast/internal/log"
	"pm10cast/internal/metrics"
	"pm10cast/internal/models"
)

// Pipeline wires a reading source, a trainer and a model store together.
// It keeps no state between calls: every method reloads and renormalizes
// the data, so it is safe to share across goroutines.
type Pipeline struct {
	Source      Source
	Trainer     Trainer
	Store       Store
	Recorder    RunRecorder
	Hyperparams models.Hyperparams
	ModelKey    string
	Mode        InferenceMode
}

// TrainResult describes a completed training run
type TrainResult struct {
	ModelKey string              `json:"model_key"`
	Examples int                 `json:"examples"`
	Duration time.Duration       `json:"duration"`
	Summary  models.ModelSummary `json:"summary"`
}

// Dataset loads every reading and z-scores the concentration column
func (p *Pipeline) Dataset(ctx context.Context) (*models.Dataset, error) {
	start := time.Now()
	ds, err := p.dataset(ctx)
	metrics.ObserveStage("dataset", time.Since(start), err)
	return ds, err
}

func (p *Pipeline) dataset(ctx context.Context) (*models.Dataset, error) {
	readings, err := p.Source.Readings(ctx)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, &DataLoadError{Source: "dataset", Err: errors.New("no readings")}
	}

	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Concentration
	}

	normalized, mean, stdDev, err := Normalize(values)
	if err != nil {
		return nil, err
	}

	ds := &models.Dataset{
		Readings: make([]models.NormalizedReading, len(readings)),
		Mean:     mean,
		StdDev:   stdDev,
	}
	for i, r := range readings {
		ds.Readings[i] = models.NormalizedReading{Reading: r, Normalized: normalized[i]}
	}
	return ds, nil
}

// Train fits a new model on the merged series and persists it under ModelKey
func (p *Pipeline) Train(ctx context.Context) (*TrainResult, error) {
	ds, err := p.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	// The most recent reading is held out of training.
	series := ds.Series()
	series = series[:len(series)-1]

	examples, err := Windows(series, p.Hyperparams.WindowWidth)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, &TrainingError{Err: fmt.Errorf("need more than %d readings to build a training window, have %d",
			p.Hyperparams.WindowWidth+1, len(ds.Readings))}
	}

	log.Infow("model training", "examples", len(examples), "key", p.ModelKey)
	start := time.Now()
	model, err := p.Trainer.Fit(ctx, examples, p.Hyperparams)
	elapsed := time.Since(start)
	metrics.RecordTraining(elapsed, err)
	if err != nil {
		var te *TrainingError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TrainingError{Err: err}
	}
	log.Infof("model running time: %.3fs", elapsed.Seconds())

	if err := p.Store.Save(ctx, p.ModelKey, model); err != nil {
		return nil, fmt.Errorf("failed to save model %s: %w", p.ModelKey, err)
	}

	return &TrainResult{
		ModelKey: p.ModelKey,
		Examples: len(examples),
		Duration: elapsed,
		Summary:  model.Summary(),
	}, nil
}

// LoadModel fetches the persisted model for ModelKey
func (p *Pipeline) LoadModel(ctx context.Context) (Model, error) {
	m, err := p.Store.Load(ctx, p.ModelKey)
	metrics.RecordModelLoad(err)
	return m, err
}

// Predict loads the model and scores it over [start, stop)
func (p *Pipeline) Predict(ctx context.Context, start, stop int) (*models.PredictionResult, error) {
	model, err := p.LoadModel(ctx)
	if err != nil {
		return nil, err
	}

	ds, err := p.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	predictor := Predictor{Mode: p.Mode, WindowWidth: p.Hyperparams.WindowWidth}
	rows, score, err := predictor.Predict(model, ds.Series(), ds.Dates(), start, stop)
	metrics.ObserveStage("predict", time.Since(began), err)
	if err != nil {
		return nil, err
	}
	metrics.SetPredictionScore(score.MSE, score.RMSE, score.MAE)

	mode := p.Mode
	if mode == "" {
		mode = ModeRaw
	}
	result := &models.PredictionResult{
		Start:    start,
		Stop:     stop,
		ModelKey: p.ModelKey,
		Mode:     string(mode),
		Rows:     rows,
		Metrics:  score,
	}

	if p.Recorder != nil {
		run := &models.PredictionRun{
			ID:        uuid.NewString(),
			ModelKey:  p.ModelKey,
			Start:     start,
			Stop:      stop,
			Mode:      result.Mode,
			Metrics:   score,
			CreatedAt: time.Now().UTC(),
			Rows:      rows,
		}
		if err := p.Recorder.SavePredictionRun(ctx, run); err != nil {
			log.Warnf("failed to record prediction run %s: %v", run.ID, err)
		}
	}

	return result, nil
}

// Stations aggregates the raw readings by monitoring site
func (p *Pipeline) Stations(ctx context.Context) ([]models.Station, error) {
	readings, err := p.Source.Readings(ctx)
	if err != nil {
		return nil, err
	}
	return Stations(readings), nil
}
