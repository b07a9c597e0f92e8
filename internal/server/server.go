package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pm10cast/internal/database"
	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
	"pm10cast/internal/models"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// Forecaster is the pipeline as seen by the handlers
type Forecaster interface {
	Dataset(ctx context.Context) (*models.Dataset, error)
	Stations(ctx context.Context) ([]models.Station, error)
	LoadModel(ctx context.Context) (forecast.Model, error)
	Train(ctx context.Context) (*forecast.TrainResult, error)
	Predict(ctx context.Context, start, stop int) (*models.PredictionResult, error)
}

// RunStore lists persisted prediction runs
type RunStore interface {
	GetPredictionRuns(ctx context.Context, limit int) ([]models.PredictionRun, error)
	GetPredictionRun(ctx context.Context, id string) (*models.PredictionRun, error)
}

// Server represents the HTTP server
type Server struct {
	forecaster Forecaster
	runs       RunStore
	router     chi.Router
	training   sync.Mutex
}

// NewServer creates a new HTTP server. runs may be nil when no database
// is configured.
func NewServer(f Forecaster, runs RunStore, allowedOrigins []string) *Server {
	s := &Server{
		forecaster: f,
		runs:       runs,
		router:     chi.NewRouter(),
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Register routes
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(api chi.Router) {
		api.Get("/dataset", s.handleDataset)
		api.Get("/stations", s.handleStations)
		api.Get("/model", s.handleModel)
		api.Post("/model/train", s.handleTrain)
		api.Get("/predictions", s.handlePredictions)
		api.Get("/predictions/runs", s.handleRuns)
		api.Get("/predictions/runs/{id}", s.handleRun)
	})

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("failed to encode response: %v", err)
	}
}

// writeError maps pipeline errors onto status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, forecast.ErrRange), errors.Is(err, forecast.ErrInvalidWindow):
		status = http.StatusBadRequest
	case errors.Is(err, forecast.ErrModelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, forecast.ErrNormalization), errors.Is(err, forecast.ErrTraining):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().String(),
	})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.forecaster.Dataset(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.forecaster.Stations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(stations),
		"stations": stations,
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	model, err := s.forecaster.LoadModel(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Summary())
}

// handleTrain fits and persists a new model. Only one fit runs at a time.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if !s.training.TryLock() {
		http.Error(w, "training already in progress", http.StatusConflict)
		return
	}
	defer s.training.Unlock()

	result, err := s.forecaster.Train(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_key":        result.ModelKey,
		"examples":         result.Examples,
		"duration_seconds": result.Duration.Seconds(),
		"summary":          result.Summary,
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	start, err := intParam(r, "start")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stop, err := intParam(r, "stop")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.forecaster.Predict(r.Context(), start, stop)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "prediction history requires a database", http.StatusNotImplemented)
		return
	}

	limit := defaultRunLimit
	if r.URL.Query().Get("limit") != "" {
		parsed, err := intParam(r, "limit")
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxRunLimit)
	}

	runs, err := s.runs.GetPredictionRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []models.PredictionRun{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "prediction history requires a database", http.StatusNotImplemented)
		return
	}

	run, err := s.runs.GetPredictionRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return e.name + " " + e.msg
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, &paramError{name: name, msg: "parameter is required"}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{name: name, msg: "must be an integer"}
	}
	return v, nil
}
