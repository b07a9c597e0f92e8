package modelstore

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"pm10cast/internal/database"
	"pm10cast/internal/forecast"
	"pm10cast/internal/lstm"
	"pm10cast/internal/models"
)

func trainedModel(t *testing.T) forecast.Model {
	t.Helper()
	series := make([]float64, 40)
	for i := range series {
		series[i] = math.Cos(float64(i) / 4)
	}
	examples, err := forecast.Windows(series, 5)
	if err != nil {
		t.Fatalf("Windows() error = %v", err)
	}
	hp := models.Hyperparams{Units: 8, Activation: "elu", WindowWidth: 5, FeatureCount: 1, L2RegStrength: 0.02, DropoutRate: 0.2, Epochs: 3, Seed: 42}
	m, err := lstm.NewTrainer().Fit(context.Background(), examples, hp)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	return m
}

func samePredictions(t *testing.T, a, b forecast.Model) {
	t.Helper()
	input := [][]float64{{0.3}, {0.1, 0.2, 0.3, 0.4, 0.5}}
	want, err := a.Predict(input)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	got, err := b.Predict(input)
	if err != nil {
		t.Fatalf("Predict() on loaded model error = %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("prediction %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Load(ctx, "lstm_model_10"); !errors.Is(err, forecast.ErrModelNotFound) {
		t.Fatalf("Load() of missing key error = %v, want ErrModelNotFound", err)
	}

	m := trainedModel(t)
	if err := store.Save(ctx, "lstm_model_10", m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lstm_model_10.msgpack")); err != nil {
		t.Errorf("expected model file: %v", err)
	}

	loaded, err := store.Load(ctx, "lstm_model_10")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	samePredictions(t, m, loaded)
}

func TestFileStore_InvalidKeys(t *testing.T) {
	store := &FileStore{Dir: t.TempDir()}

	for _, key := range []string{"", "..", "../escape", `a\b`} {
		if _, err := store.Load(context.Background(), key); err == nil || errors.Is(err, forecast.ErrModelNotFound) {
			t.Errorf("Load(%q) error = %v, want invalid key error", key, err)
		}
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.msgpack"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &FileStore{Dir: dir}
	if _, err := store.Load(context.Background(), "broken"); err == nil {
		t.Error("Load() of a corrupt file returned nil error")
	}
}

func TestSQLStore(t *testing.T) {
	db, err := database.NewDB(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	store := NewSQLStore(db)
	ctx := context.Background()

	if _, err := store.Load(ctx, "lstm_model_10"); !errors.Is(err, forecast.ErrModelNotFound) {
		t.Fatalf("Load() of missing key error = %v, want ErrModelNotFound", err)
	}

	m := trainedModel(t)
	if err := store.Save(ctx, "lstm_model_10", m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, "lstm_model_10")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	samePredictions(t, m, loaded)
}
