package main

import (
	"context"
	"flag"

	"pm10cast/internal/app"
	"pm10cast/internal/config"
	"pm10cast/internal/dataset"
	"pm10cast/internal/log"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	replace := flag.Bool("replace", false, "delete stored readings before importing")
	flag.Parse()

	// Load config for database connection
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("%v", err)
	}
	defer log.Sync()

	db, err := app.OpenDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if db == nil {
		log.Fatalf("No database configured; set database.driver or DB_DRIVER")
	}
	defer db.Close()

	ctx := context.Background()

	sources := flag.Args()
	if len(sources) == 0 {
		sources = cfg.Data.Sources
	}

	readings, err := dataset.NewCSVSource(sources).Readings(ctx)
	if err != nil {
		log.Fatalf("Failed to read CSV sources: %v", err)
	}
	log.Infof("Read %d readings from %d sources", len(readings), len(sources))

	if *replace {
		deleted, err := db.ReplaceReadings(ctx, readings)
		if err != nil {
			log.Fatalf("Failed to replace readings: %v", err)
		}
		log.Infof("Deleted %d stored readings", deleted)
	} else if err := db.InsertReadings(ctx, readings); err != nil {
		log.Fatalf("Failed to insert readings: %v", err)
	}

	log.Infof("Import complete! Successfully inserted %d readings", len(readings))
}
