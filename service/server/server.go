package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the market API.
type Server struct {
	addr          string
	activityLimit int
	aggregator    MarketAggregator
	listings      ListingService
	ssePublisher  *SSEPublisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	server        *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The ssePublisher is optional - if nil, the activity stream is disabled.
// The metrics is optional - if nil, /metrics is not served.
func New(cfg *config.Config, aggregator MarketAggregator, listings ListingService, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:          cfg.ServerAddr,
		activityLimit: cfg.ActivityLimit,
		aggregator:    aggregator,
		listings:      listings,
		ssePublisher:  ssePublisher,
		metrics:       m,
		logger:        logger,
	}
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	limit := s.activityLimit
	if limit <= 0 {
		limit = market.DefaultActivityLimit
	}

	route("GET /api/v1/activities", "/api/v1/activities",
		handleActivities(s.aggregator, s.listings, limit, config.MaxActivityLimit, s.logger))
	route("GET /api/v1/mints/{mint}/transfers", "/api/v1/mints/{mint}/transfers",
		handleTransfers(s.aggregator, s.logger))
	route("GET /api/v1/sellers/top", "/api/v1/sellers/top",
		handleTopSellers(s.listings, s.logger))
	route("GET /api/v1/stats", "/api/v1/stats",
		handleStats(s.aggregator, s.logger))
	route("GET /api/v1/listings", "/api/v1/listings",
		handleListListings(s.listings, s.logger))
	route("GET /api/v1/listings/{mint}", "/api/v1/listings/{mint}",
		handleGetListing(s.listings, s.logger))

	if s.ssePublisher != nil {
		route("GET /api/v1/stream/activity", "/api/v1/stream/activity",
			handleStreamActivity(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE activity stream enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, activity stream disabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
