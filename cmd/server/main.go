package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/metrics"
	"github.com/brojonat/nftmarket/service/server"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

func main() {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.SolanaNetwork,
		"log_level", cfg.LogLevel,
	)

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// For premium RPC endpoints, include the API key in the URL
	rpcClient := chain.NewRPCClient(cfg.SolanaRPCURL, cfg.SolanaRPCRPS, metricsCollector)
	chainClient := chain.NewClient(rpcClient, rpcClient.Endpoint(), metricsCollector, logger)
	logger.Info("initialized solana RPC client",
		"endpoint", rpcClient.Endpoint(),
		"rps", cfg.SolanaRPCRPS,
	)

	programID := solana.MustPublicKeyFromBase58(cfg.MarketplaceProgramID)
	resolver := marketplace.NewMetadataResolver(rpcClient, cfg.MetadataFetchTimeout, metricsCollector, logger)
	listings := marketplace.NewService(rpcClient, programID, resolver, metricsCollector, logger)
	aggregator := market.NewAggregator(chainClient, listings, metricsCollector, logger)

	// The live stream needs NATS; the read API works without it.
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		p, err := server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("failed to connect SSE publisher to NATS, stream disabled",
				"nats_url", cfg.NATSURL,
				"error", err,
			)
		} else {
			ssePublisher = p
		}
	}

	httpServer := server.New(cfg, aggregator, listings, ssePublisher, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"program_id", programID.String(),
		"nats_url", cfg.NATSURL,
		"stream_enabled", ssePublisher != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
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
