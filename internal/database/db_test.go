package database

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"pm10cast/internal/forecast"
	"pm10cast/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_UnknownDriver(t *testing.T) {
	if _, err := NewDB("postgres", "whatever"); err == nil {
		t.Error("NewDB() with an unsupported driver returned nil error")
	}
}

func TestReadings_RoundTripKeepsOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	day := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	in := []models.Reading{
		{Date: day, Site: "Azusa", Latitude: 34.1365, Longitude: -117.92391, Concentration: 31},
		{Date: day, Site: "Azusa", Latitude: 34.1365, Longitude: -117.92391, Concentration: 29},
		{Date: day.AddDate(0, 0, -1), Site: "Reseda", Latitude: 34.19925, Longitude: -118.53276, Concentration: 18.5},
	}

	if err := db.InsertReadings(ctx, in); err != nil {
		t.Fatalf("InsertReadings() error = %v", err)
	}

	out, err := db.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Readings() returned %d rows, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Date.Equal(in[i].Date) || out[i].Site != in[i].Site || out[i].Concentration != in[i].Concentration {
			t.Errorf("reading %d = %+v, want %+v", i, out[i], in[i])
		}
		if out[i].ID == 0 {
			t.Errorf("reading %d has no id", i)
		}
	}

	n, err := db.DeleteReadings(ctx)
	if err != nil || n != 3 {
		t.Errorf("DeleteReadings() = %d, %v; want 3, nil", n, err)
	}
}

func TestReplaceReadings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	day := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	old := []models.Reading{
		{Date: day, Site: "Azusa", Concentration: 31},
		{Date: day, Site: "Reseda", Concentration: 18},
	}
	if err := db.InsertReadings(ctx, old); err != nil {
		t.Fatalf("InsertReadings() error = %v", err)
	}

	broken := []models.Reading{
		{Date: day.AddDate(0, 0, 1), Site: "Azusa", Concentration: 40},
		{Date: day.AddDate(0, 0, 2), Site: "Azusa", Concentration: math.NaN()},
	}
	if _, err := db.ReplaceReadings(ctx, broken); err == nil {
		t.Fatal("ReplaceReadings() with a NaN concentration returned nil error")
	}

	kept, err := db.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	if len(kept) != 2 || kept[0].Concentration != 31 || kept[1].Concentration != 18 {
		t.Fatalf("Readings() after failed replace = %+v, want the original two", kept)
	}

	fresh := []models.Reading{{Date: day.AddDate(0, 0, 5), Site: "Glendora", Concentration: 22.5}}
	deleted, err := db.ReplaceReadings(ctx, fresh)
	if err != nil {
		t.Fatalf("ReplaceReadings() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("ReplaceReadings() deleted %d, want 2", deleted)
	}

	got, err := db.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	if len(got) != 1 || got[0].Site != "Glendora" || got[0].Concentration != 22.5 {
		t.Errorf("Readings() after replace = %+v", got)
	}
}

func TestModels_SaveLoadReplace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.LoadModel(ctx, "lstm_model_10")
	if !errors.Is(err, forecast.ErrModelNotFound) {
		t.Fatalf("LoadModel() of a missing key error = %v, want ErrModelNotFound", err)
	}

	if err := db.SaveModel(ctx, "lstm_model_10", []byte{1, 2, 3}); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}
	if err := db.SaveModel(ctx, "lstm_model_10", []byte{4, 5}); err != nil {
		t.Fatalf("SaveModel() replace error = %v", err)
	}

	data, err := db.LoadModel(ctx, "lstm_model_10")
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if string(data) != string([]byte{4, 5}) {
		t.Errorf("LoadModel() = %v, want [4 5]", data)
	}
}

func TestPredictionRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	older := &models.PredictionRun{
		ID: "run-1", ModelKey: "lstm_model_10", Start: 0, Stop: 2, Mode: "raw",
		Metrics:   models.Metrics{MSE: 0.25, RMSE: 0.5, MAE: 0.4},
		CreatedAt: base,
		Rows: []models.PredictionRow{
			{Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), Predicted: 0.1, Actual: 0.5, Diff: 0.4},
			{Date: time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC), Predicted: -0.2, Actual: 0.2, Diff: 0.4},
		},
	}
	newer := &models.PredictionRun{
		ID: "run-2", ModelKey: "lstm_model_10", Start: 10, Stop: 20, Mode: "windowed",
		CreatedAt: base.Add(time.Minute),
	}

	for _, run := range []*models.PredictionRun{older, newer} {
		if err := db.SavePredictionRun(ctx, run); err != nil {
			t.Fatalf("SavePredictionRun(%s) error = %v", run.ID, err)
		}
	}

	runs, err := db.GetPredictionRuns(ctx, 10)
	if err != nil {
		t.Fatalf("GetPredictionRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("GetPredictionRuns() = %+v, want newest first", runs)
	}
	if !runs[1].CreatedAt.Equal(base) || runs[1].Metrics != older.Metrics {
		t.Errorf("run-1 = %+v", runs[1])
	}

	limited, err := db.GetPredictionRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("GetPredictionRuns(1) = %d runs, %v", len(limited), err)
	}

	full, err := db.GetPredictionRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetPredictionRun() error = %v", err)
	}
	if len(full.Rows) != 2 || full.Rows[1].Predicted != -0.2 || !full.Rows[0].Date.Equal(older.Rows[0].Date) {
		t.Errorf("GetPredictionRun() rows = %+v", full.Rows)
	}

	if _, err := db.GetPredictionRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetPredictionRun() of a missing id error = %v, want ErrRunNotFound", err)
	}
}
