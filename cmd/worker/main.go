package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/brojonat/nftmarket/service/db"
	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/metrics"
	natspkg "github.com/brojonat/nftmarket/service/nats"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/brojonat/nftmarket/service/temporal"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	// Load and validate configuration from environment
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"refresh_interval", cfg.RefreshInterval,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Start metrics HTTP server
	metricsAddr := getEnv("METRICS_ADDR", ":9091")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	rpcClient := chain.NewRPCClient(cfg.SolanaRPCURL, cfg.SolanaRPCRPS, metricsCollector)
	chainClient := chain.NewClient(rpcClient, rpcClient.Endpoint(), metricsCollector, logger)
	programID := solana.MustPublicKeyFromBase58(cfg.MarketplaceProgramID)
	resolver := marketplace.NewMetadataResolver(rpcClient, cfg.MetadataFetchTimeout, metricsCollector, logger)
	listings := marketplace.NewService(rpcClient, programID, resolver, metricsCollector, logger)
	aggregator := market.NewAggregator(chainClient, listings, metricsCollector, logger)
	logger.Info("initialized solana RPC client", "endpoint", rpcClient.Endpoint())

	workerConfig := temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Listings:          listings,
		Aggregator:        aggregator,
		Metrics:           metricsCollector,
		Logger:            logger,
	}

	// The archive is optional; without DATABASE_URL snapshots are skipped.
	if cfg.ArchiveEnabled() {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		workerConfig.Store = store
		logger.Info("connected to database, archive enabled")
	} else {
		logger.Warn("DATABASE_URL not set, archive disabled")
	}

	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Warn("failed to create NATS publisher, activity events disabled", "error", err)
		} else {
			defer natsPublisher.Close()
			workerConfig.Publisher = natsPublisher
			logger.Info("connected to NATS", "url", cfg.NATSURL)
		}
	}

	worker, err := temporal.NewWorker(workerConfig)
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	// Keep the refresh schedule in line with REFRESH_INTERVAL on every start.
	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		metricsCollector,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	input := temporal.RefreshMarketInput{ActivityLimit: cfg.ActivityLimit}
	if err := temporalClient.UpsertRefreshSchedule(ctx, cfg.RefreshInterval, input); err != nil {
		logger.Error("failed to upsert refresh schedule", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"archive_enabled", workerConfig.Store != nil,
		"events_enabled", workerConfig.Publisher != nil,
		"refresh_interval", cfg.RefreshInterval,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting temporal worker")
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		logger.Info("stopping temporal worker")
		worker.Stop()
		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// getEnv returns the value of an environment variable or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
