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
	"pm10cast/internal/models"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	epochs := flag.Int("epochs", 0, "override the configured number of epochs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("%v", err)
	}
	defer log.Sync()

	if *epochs > 0 {
		cfg.Model.Hyperparams.Epochs = *epochs
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.Pipeline.Train(ctx)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}

	printSummary(result.Summary)
	fmt.Printf("\nTrained on %d windows, saved as %q\n", result.Examples, result.ModelKey)
	fmt.Printf("Model running time: %.3fs\n", result.Duration.Seconds())
}

func printSummary(s models.ModelSummary) {
	fmt.Printf("%-28s %-20s %10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Println("=================================================================")
	for _, layer := range s.Layers {
		fmt.Printf("%-28s %-20s %10d\n", layer.Name, layer.OutputShape, layer.Params)
	}
	fmt.Println("=================================================================")
	fmt.Printf("Total params: %d\n", s.TotalParams)
	fmt.Printf("Activation: %s, window: %d, dropout: %.2f, l2: %.3f, epochs: %d\n",
		s.Hyperparams.Activation, s.Hyperparams.WindowWidth, s.Hyperparams.DropoutRate,
		s.Hyperparams.L2RegStrength, s.Hyperparams.Epochs)
}
