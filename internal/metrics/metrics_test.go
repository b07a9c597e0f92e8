package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueriesTotal.WithLabelValues("INSERT", "models", "error"))

	RecordDBQuery("INSERT", "models", 5*time.Millisecond, errors.New("boom"))

	after := testutil.ToFloat64(DBQueriesTotal.WithLabelValues("INSERT", "models", "error"))
	if after != before+1 {
		t.Errorf("db_queries_total{status=error} = %v, want %v", after, before+1)
	}
}

func TestRecordModelLoad(t *testing.T) {
	before := testutil.ToFloat64(ModelLoadsTotal.WithLabelValues("success"))

	RecordModelLoad(nil)

	if got := testutil.ToFloat64(ModelLoadsTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("model_loads_total{status=success} = %v, want %v", got, before+1)
	}
}

func TestSetPredictionScore(t *testing.T) {
	SetPredictionScore(0.25, 0.5, 0.4)

	tests := []struct {
		metric string
		want   float64
	}{
		{"mse", 0.25},
		{"rmse", 0.5},
		{"mae", 0.4},
	}

	for _, tt := range tests {
		if got := testutil.ToFloat64(PredictionScore.WithLabelValues(tt.metric)); got != tt.want {
			t.Errorf("score %s = %v, want %v", tt.metric, got, tt.want)
		}
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	UpdateDBConnectionStats(4, 1, 3)

	if got := testutil.ToFloat64(DBConnectionsOpen); got != 4 {
		t.Errorf("db_connections_open = %v, want 4", got)
	}
	if got := testutil.ToFloat64(DBConnectionsIdle); got != 3 {
		t.Errorf("db_connections_idle = %v, want 3", got)
	}
}
