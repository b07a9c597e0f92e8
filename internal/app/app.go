// Package app wires configuration into a ready pipeline for the binaries.
package app

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	"pm10cast/internal/config"
	"pm10cast/internal/database"
	"pm10cast/internal/dataset"
	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
	"pm10cast/internal/lstm"
	"pm10cast/internal/modelstore"
	"pm10cast/internal/remote"
)

// App holds the long-lived resources behind a pipeline
type App struct {
	Config   *config.Config
	DB       *database.DB
	Redis    *redis.Client
	Pipeline *forecast.Pipeline
}

// OpenDB connects to the configured database, or returns nil when none
// is configured
func OpenDB(cfg *config.Config) (*database.DB, error) {
	if cfg.Database.Driver == "" {
		return nil, nil
	}
	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	log.Infow("database connected", "driver", cfg.Database.Driver)
	return db, nil
}

// OpenRedis creates a client for the configured Redis server
func OpenRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// New builds the pipeline described by cfg
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	mode, err := forecast.ParseInferenceMode(cfg.Model.InferenceMode)
	if err != nil {
		a.Close()
		return nil, err
	}

	p := &forecast.Pipeline{
		Hyperparams: cfg.Model.Hyperparams,
		ModelKey:    cfg.Model.Key,
		Mode:        mode,
	}

	switch cfg.Data.Source {
	case config.SourceDatabase:
		if db == nil {
			a.Close()
			return nil, fmt.Errorf("data.source is database but no database is configured")
		}
		p.Source = db
	default:
		p.Source = dataset.NewCSVSource(cfg.Data.Sources)
	}

	switch cfg.Model.Trainer {
	case config.TrainerRemote:
		a.Redis = OpenRedis(cfg)
		p.Trainer = remote.NewTrainer(a.Redis, cfg.Model.RemoteTimeout)
	default:
		p.Trainer = lstm.NewTrainer()
	}

	switch cfg.Model.Store {
	case config.StoreDatabase:
		if db == nil {
			a.Close()
			return nil, fmt.Errorf("model.store is database but no database is configured")
		}
		p.Store = modelstore.NewSQLStore(db)
	default:
		store, err := modelstore.NewFileStore(cfg.Model.Dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		p.Store = store
	}

	if db != nil {
		p.Recorder = db
	}

	a.Pipeline = p
	log.Infow("pipeline ready",
		"source", cfg.Data.Source,
		"trainer", cfg.Model.Trainer,
		"store", cfg.Model.Store,
		"model_key", cfg.Model.Key,
		"mode", string(mode))
	return a, nil
}

// Close releases the database and Redis connections
func (a *App) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warnf("failed to close redis: %v", err)
		}
	}
}
