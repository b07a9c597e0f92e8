package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pm10cast/internal/app"
	"pm10cast/internal/config"
	"pm10cast/internal/log"
	"pm10cast/internal/server"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("%v", err)
	}
	defer log.Sync()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer a.Close()

	var runs server.RunStore
	if a.DB != nil {
		runs = a.DB
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := server.NewServer(a.Pipeline, runs, cfg.Server.AllowedOrigins)

	log.Infof("Starting server on %s", cfg.Server.Addr)
	if err := httpServer.Start(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Info("Server stopped")
}
