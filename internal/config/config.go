package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pm10cast/internal/forecast"
	"pm10cast/internal/lstm"
	"pm10cast/internal/models"
)

// Reading sources
const (
	SourceCSV      = "csv"
	SourceDatabase = "database"
)

// Model backends
const (
	TrainerLocal  = "local"
	TrainerRemote = "remote"
	StoreFile     = "file"
	StoreDatabase = "database"
)

var (
	instance *Config
	once     sync.Once
)

// DataConfig lists where readings come from
type DataConfig struct {
	Source  string   `yaml:"source"`
	Sources []string `yaml:"sources"`
}

// ModelConfig selects the training backend, the store and the hyperparams
type ModelConfig struct {
	Key           string             `yaml:"key"`
	Trainer       string             `yaml:"trainer"`
	Store         string             `yaml:"store"`
	Dir           string             `yaml:"dir"`
	InferenceMode string             `yaml:"inference_mode"`
	RemoteTimeout time.Duration      `yaml:"remote_timeout"`
	Hyperparams   models.Hyperparams `yaml:"hyperparams"`
}

// DatabaseConfig is optional; an empty driver disables the database
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config is the application configuration
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Debug    bool           `yaml:"debug"`
}

// Default returns the configuration used for unset fields
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source: SourceCSV,
			Sources: []string{
				"data/LA_pm10_2020.csv",
				"data/LA_pm10_2021.csv",
				"data/LA_pm10_2022.csv",
			},
		},
		Model: ModelConfig{
			Key:           "lstm_model_10",
			Trainer:       TrainerLocal,
			Store:         StoreFile,
			Dir:           "models",
			InferenceMode: string(forecast.ModeRaw),
			RemoteTimeout: 60 * time.Second,
			Hyperparams: models.Hyperparams{
				Units:         50,
				Activation:    "elu",
				WindowWidth:   10,
				FeatureCount:  1,
				L2RegStrength: 0.02,
				DropoutRate:   0.6,
				Epochs:        25,
				Seed:          42,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads the YAML file once, applies environment overrides and
// validates the result. A .env file in the working directory is loaded
// first if present.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		if envErr := godotenv.Load(); envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
			err = fmt.Errorf("failed to load .env: %w", envErr)
			return
		}

		instance = Default()

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		instance.applyEnv()

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// applyEnv lets the environment override connection settings
func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	if c.Database.Driver != "" {
		c.Database.DSN = GetDatabaseDSN(c.Database.Driver, c.Database.DSN)
	}
	c.Redis = GetRedisConfig(c.Redis)
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	if debug, err := strconv.ParseBool(os.Getenv("LOG_DEBUG")); err == nil {
		c.Debug = debug
	}
}

func (c *Config) validate() error {
	switch c.Data.Source {
	case SourceCSV:
		if len(c.Data.Sources) == 0 {
			return fmt.Errorf("data.sources cannot be empty")
		}
	case SourceDatabase:
	default:
		return fmt.Errorf("data.source must be %q or %q, got %q", SourceCSV, SourceDatabase, c.Data.Source)
	}

	if c.Model.Key == "" {
		return fmt.Errorf("model.key cannot be empty")
	}
	if c.Model.Trainer != TrainerLocal && c.Model.Trainer != TrainerRemote {
		return fmt.Errorf("model.trainer must be %q or %q, got %q", TrainerLocal, TrainerRemote, c.Model.Trainer)
	}
	switch c.Model.Store {
	case StoreFile:
		if c.Model.Dir == "" {
			return fmt.Errorf("model.dir cannot be empty for the file store")
		}
	case StoreDatabase:
	default:
		return fmt.Errorf("model.store must be %q or %q, got %q", StoreFile, StoreDatabase, c.Model.Store)
	}
	if _, err := forecast.ParseInferenceMode(c.Model.InferenceMode); err != nil {
		return fmt.Errorf("model.inference_mode: %w", err)
	}

	hp := c.Model.Hyperparams
	if hp.Units < 1 {
		return fmt.Errorf("model.hyperparams.units must be >= 1")
	}
	if hp.WindowWidth < 1 {
		return fmt.Errorf("model.hyperparams.window_width must be >= 1")
	}
	if hp.FeatureCount != 1 {
		return fmt.Errorf("model.hyperparams.feature_count must be 1 for a univariate series, got %d", hp.FeatureCount)
	}
	if hp.DropoutRate < 0 || hp.DropoutRate >= 1 {
		return fmt.Errorf("model.hyperparams.dropout_rate must be in [0, 1)")
	}
	if hp.L2RegStrength < 0 {
		return fmt.Errorf("model.hyperparams.l2_reg_strength must be >= 0")
	}
	if !lstm.ValidActivation(hp.Activation) {
		return fmt.Errorf("model.hyperparams.activation %q is not supported", hp.Activation)
	}

	needsDB := c.Data.Source == SourceDatabase || c.Model.Store == StoreDatabase
	if needsDB && c.Database.Driver == "" {
		return fmt.Errorf("database.driver is required when readings or models live in the database")
	}

	return nil
}
