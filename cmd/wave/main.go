package main

import (
	"context"
	"log"
	"os"
	"time"

	"prediction-settlement/internal/cache"
	"prediction-settlement/internal/config"
	"prediction-settlement/internal/database"
	"prediction-settlement/internal/repository"
	"prediction-settlement/internal/services"

	"github.com/redis/go-redis/v9"
)

// Runs one money-wave pass for the current hour and exits. Exit code 0
// means the run reached COMPLETED; anything else exits 1.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		if opts, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			redisClient = redis.NewClient(opts)
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.Printf("Redis unreachable, continuing without pool cache: %v", err)
				redisClient = nil
			}
		}
	}

	repo := repository.NewRepository(database.GetDB())
	waveService := services.NewWaveService(
		database.GetDB(),
		repo,
		cache.NewPoolCache(redisClient),
		cfg.App.PoolDomain,
		cfg.Location(),
		cfg.Wave.AllocationRate,
		cfg.Wave.MaxSourceFraction,
		cfg.Wave.VentureBudgetRate,
	)

	record, err := waveService.Run(context.Background(), time.Now())
	if err != nil {
		log.Printf("Wave run failed: %v", err)
		os.Exit(1)
	}

	log.Printf("Wave %s finished with status %s (issued %s, redistributed %s, venture %s)",
		record.ID, record.Status,
		record.TotalIssued.String(), record.TotalRedistributed.String(), record.TotalVentureFunded.String())
	os.Exit(0)
}
