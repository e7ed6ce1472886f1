// Package main provides the entrypoint for the SunnySeat precompute worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"

	"github.com/rthunborg/sunnyseat-sub000/internal/cache"
	"github.com/rthunborg/sunnyseat-sub000/internal/database"
	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
	"github.com/rthunborg/sunnyseat-sub000/internal/precompute"
	"github.com/rthunborg/sunnyseat-sub000/internal/shadow"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
	"github.com/rthunborg/sunnyseat-sub000/internal/weather"
	"github.com/rthunborg/sunnyseat-sub000/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "sunnyseat-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SunnySeat worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	venueRepo := venue.NewPostgresRepository(pool)
	weatherRepo := weather.NewPostgresRepository(pool)
	precomputeStore := precompute.NewPostgresStore(pool)

	exposureService := exposure.NewService(exposure.ServiceConfig{
		Venues: venueRepo,
		Shadows: shadow.NewEngine(shadow.EngineConfig{
			Venues: venueRepo,
			Logger: log,
		}),
		Weather: weatherRepo,
		Logger:  log,
	})

	scheduler := precompute.NewScheduler(precompute.SchedulerConfig{
		Store:    precomputeStore,
		Exposure: exposureService,
		Logger:   log,
	})

	// Cache warming works against the same tiers the API reads.
	tiers := []cache.Tier{
		cache.NewMemoryTier(cache.MemoryTierConfig{}),
	}
	if valkeyAddr := os.Getenv("VALKEY_ADDR"); valkeyAddr != "" {
		valkeyClient, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{valkeyAddr},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to valkey")
		}
		defer valkeyClient.Close()
		tiers = append(tiers, cache.NewValkeyTier(cache.ValkeyTierConfig{
			Client: valkeyClient,
		}))
		log.Info().Str("addr", valkeyAddr).Msg("valkey tier enabled")
	}
	tiers = append(tiers, cache.NewPrecomputedTier(precompute.NewRecordSource(precomputeStore)))

	layeredCache := cache.NewLayered(cache.LayeredConfig{
		Tiers:  tiers,
		Logger: log,
	})

	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config:    worker.DefaultPrecomputeConfig(),
		Logger:    log,
		Scheduler: scheduler,
		Venues:    venueRepo,
		Cache:     layeredCache,
	})

	// Health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"metrics": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Prefer Pub/Sub triggered jobs; fall back to an interval loop when no
	// subscription is configured (local development).
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")

	if projectID != "" && subscription != "" {
		pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Job:              job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer pubsubHandler.Close()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Fatal().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("pubsub not configured - running on interval")

		interval := 6 * time.Hour
		if v := os.Getenv("PRECOMPUTE_INTERVAL"); v != "" {
			if parsed, err := time.ParseDuration(v); err == nil {
				interval = parsed
			}
		}

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			// Run once at startup, then on the interval.
			_ = job.Run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_ = job.Run(ctx)
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
