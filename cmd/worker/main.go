package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"pm10cast/internal/app"
	"pm10cast/internal/config"
	"pm10cast/internal/log"
	"pm10cast/internal/lstm"
	"pm10cast/internal/remote"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	group := flag.String("group", "trainers", "consumer group name")
	consumer := flag.String("consumer", "", "consumer name (defaults to the hostname)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("%v", err)
	}
	defer log.Sync()

	name := *consumer
	if name == "" {
		name, err = os.Hostname()
		if err != nil {
			name = "worker-1"
		}
	}

	// Initialize Redis client
	redisClient := app.OpenRedis(cfg)
	defer redisClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis at %s: %v", cfg.Redis.Addr, err)
	}

	worker := remote.NewWorker(redisClient, lstm.NewTrainer(), *group, name)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Worker stopped: %v", err)
	}
	log.Info("Shutting down worker...")
}
