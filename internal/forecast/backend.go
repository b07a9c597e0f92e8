package forecast

import (
	"context"

	"pm10cast/internal/models"
)

// Model maps length-W sequences to one value each
type Model interface {
	Predict(inputs [][]float64) ([]float64, error)
	Summary() models.ModelSummary
	MarshalBinary() ([]byte, error)
}

// Trainer fits a model from windowed examples. Implementations pass
// hyperparams through untouched.
type Trainer interface {
	Fit(ctx context.Context, examples []models.WindowedExample, hp models.Hyperparams) (Model, error)
}

// Store persists trained models by key. Load returns a *ModelNotFoundError
// for unknown keys.
type Store interface {
	Load(ctx context.Context, key string) (Model, error)
	Save(ctx context.Context, key string, m Model) error
}

// Source yields raw readings in merge order
type Source interface {
	Readings(ctx context.Context) ([]models.Reading, error)
}

// RunRecorder persists prediction results
type RunRecorder interface {
	SavePredictionRun(ctx context.Context, run *models.PredictionRun) error
}
