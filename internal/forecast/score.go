package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"pm10cast/internal/models"
)

// Score computes MSE, RMSE and MAE between the predicted and actual columns
func Score(rows []models.PredictionRow) models.Metrics {
	if len(rows) == 0 {
		return models.Metrics{}
	}

	sq := make([]float64, len(rows))
	abs := make([]float64, len(rows))
	for i, r := range rows {
		d := r.Predicted - r.Actual
		sq[i] = d * d
		abs[i] = math.Abs(d)
	}

	mse := stat.Mean(sq, nil)
	return models.Metrics{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  stat.Mean(abs, nil),
	}
}
