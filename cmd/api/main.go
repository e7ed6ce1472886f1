// Package main provides the entrypoint for the SunnySeat API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"

	"github.com/rthunborg/sunnyseat-sub000/internal/api"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/handler"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/middleware"
	"github.com/rthunborg/sunnyseat-sub000/internal/cache"
	"github.com/rthunborg/sunnyseat-sub000/internal/database"
	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
	"github.com/rthunborg/sunnyseat-sub000/internal/precompute"
	"github.com/rthunborg/sunnyseat-sub000/internal/shadow"
	"github.com/rthunborg/sunnyseat-sub000/internal/telemetry"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
	"github.com/rthunborg/sunnyseat-sub000/internal/weather"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "sunnyseat-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SunnySeat API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	sampleRatio := 0.0
	if v := os.Getenv("OTEL_SAMPLE_RATIO"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			sampleRatio = parsed
		}
	}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
		SampleRatio:    sampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	computeMetrics, err := middleware.NewComputeMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize compute metrics")
		os.Exit(1)
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize repositories
	venueRepo := venue.NewPostgresRepository(pool)
	weatherRepo := weather.NewPostgresRepository(pool)
	precomputeStore := precompute.NewPostgresStore(pool)

	// Initialize the shadow engine and exposure service
	shadowEngine := shadow.NewEngine(shadow.EngineConfig{
		Venues: venueRepo,
		Logger: log,
	})

	exposureService := exposure.NewService(exposure.ServiceConfig{
		Venues:      venueRepo,
		Shadows:     shadowEngine,
		Weather:     weatherRepo,
		Precomputed: precompute.NewRecordSource(precomputeStore),
		Logger:      log,
	})
	log.Info().Msg("exposure service initialized")

	// Initialize the precompute scheduler
	scheduler := precompute.NewScheduler(precompute.SchedulerConfig{
		Store:    precomputeStore,
		Exposure: exposureService,
		Logger:   log,
	})
	log.Info().Msg("precompute scheduler initialized")

	// Assemble cache tiers: memory, then Valkey if configured, then
	// precomputed records.
	tiers := []cache.Tier{
		cache.NewMemoryTier(cache.MemoryTierConfig{}),
	}
	valkeyAddr := os.Getenv("VALKEY_ADDR")
	if valkeyAddr != "" {
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
	} else {
		log.Warn().Msg("VALKEY_ADDR not set - running without distributed cache tier")
	}
	tiers = append(tiers, cache.NewPrecomputedTier(precompute.NewRecordSource(precomputeStore)))

	layeredCache := cache.NewLayered(cache.LayeredConfig{
		Tiers:  tiers,
		Logger: log,
	})
	log.Info().Int("tiers", len(tiers)).Msg("cache initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		ComputeMetrics:  computeMetrics,
		ExposureService: exposureService,
		Scheduler:       scheduler,
		Venues:          venueRepo,
		Cache:           layeredCache,
		ReadinessChecks: []handler.ReadinessCheck{
			{Name: "database", Check: pool.Ping},
			{Name: "cache", Check: func(ctx context.Context) error {
				if health := layeredCache.Health(ctx); health.Status == cache.StatusCritical {
					return fmt.Errorf("cache critical: %v", health.Tiers)
				}
				return nil
			}},
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
