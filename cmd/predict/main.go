package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pm10cast/internal/app"
	"pm10cast/internal/config"
	"pm10cast/internal/log"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	start := flag.Int("start", 0, "first index of the prediction range")
	stop := flag.Int("stop", 20, "index one past the end of the prediction range")
	mode := flag.String("mode", "", "inference mode override (raw or windowed)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("%v", err)
	}
	defer log.Sync()

	if *mode != "" {
		cfg.Model.InferenceMode = *mode
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := a.Pipeline.Predict(ctx, *start, *stop)
	if err != nil {
		log.Fatalf("Prediction failed: %v", err)
	}

	fmt.Printf("=== %s predictions [%d, %d) using %s ===\n", result.Mode, result.Start, result.Stop, result.ModelKey)
	fmt.Printf("%-12s %12s %12s %12s\n", "Date", "Predicted", "Actual", "Diff")
	for _, row := range result.Rows {
		fmt.Printf("%-12s %12.4f %12.4f %12.4f\n", row.Date.Format("2006-01-02"), row.Predicted, row.Actual, row.Diff)
	}
	fmt.Printf("\nMSE: %.4f  RMSE: %.4f  MAE: %.4f\n", result.Metrics.MSE, result.Metrics.RMSE, result.Metrics.MAE)
}
