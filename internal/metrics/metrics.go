package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)
)

// Pipeline metrics
var (
	// StageDuration tracks how long each pipeline stage took
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pm10cast_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	// TrainingRunsTotal counts model fits by outcome
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm10cast_training_runs_total",
			Help: "Total number of model training runs",
		},
		[]string{"status"},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pm10cast_training_duration_seconds",
			Help:    "Wall time of model training in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// ModelLoadsTotal counts store lookups by outcome
	ModelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm10cast_model_loads_total",
			Help: "Total number of model loads",
		},
		[]string{"status"},
	)

	// PredictionScore holds the scores of the most recent prediction request
	PredictionScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pm10cast_last_prediction_score",
			Help: "Error metrics of the most recent prediction request",
		},
		[]string{"metric"},
	)

	// RemoteJobsTotal counts jobs handed to the training worker
	RemoteJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm10cast_remote_jobs_total",
			Help: "Total number of remote training jobs by outcome",
		},
		[]string{"status"},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm10cast_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppStartTime.SetToCurrentTime()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(queryType, table, status(err)).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}

// ObserveStage records the duration of one pipeline stage
func ObserveStage(stage string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(stage, status(err)).Observe(duration.Seconds())
}

// RecordTraining records one model fit
func RecordTraining(duration time.Duration, err error) {
	TrainingRunsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		TrainingDuration.Observe(duration.Seconds())
	}
}

// RecordModelLoad records one store lookup
func RecordModelLoad(err error) {
	ModelLoadsTotal.WithLabelValues(status(err)).Inc()
}

// SetPredictionScore publishes the latest prediction error metrics
func SetPredictionScore(mse, rmse, mae float64) {
	PredictionScore.WithLabelValues("mse").Set(mse)
	PredictionScore.WithLabelValues("rmse").Set(rmse)
	PredictionScore.WithLabelValues("mae").Set(mae)
}

// RecordRemoteJob records the outcome of one remote training job
func RecordRemoteJob(outcome string) {
	RemoteJobsTotal.WithLabelValues(outcome).Inc()
}
