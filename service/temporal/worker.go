package temporal

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/nftmarket/service/metrics"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	Listings   ListingLoader
	Aggregator MarketAggregator
	Store      StoreInterface     // Optional: nil disables the archive
	Publisher  PublisherInterface // Optional: nil disables events
	Metrics    *metrics.Metrics   // Optional: if nil, no metrics will be recorded
	Logger     *slog.Logger
}

// Worker wraps a Temporal worker and provides lifecycle management.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker creates and configures a new Temporal worker.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     10,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(RefreshMarketWorkflow)

	activities := NewActivities(
		config.Listings,
		config.Aggregator,
		config.Store,
		config.Publisher,
		config.Metrics,
		logger,
	)
	registerActivities(w, activities)

	logger.Info("registered workflow and activities",
		"workflow", "RefreshMarketWorkflow",
		"archive", config.Store != nil,
		"events", config.Publisher != nil,
	)

	return &Worker{
		client: c,
		worker: w,
		logger: logger,
	}, nil
}

type activityRegistry interface {
	RegisterActivity(a interface{})
}

func registerActivities(r activityRegistry, activities *Activities) {
	r.RegisterActivity(activities.LoadListings)
	r.RegisterActivity(activities.ComputeStats)
	r.RegisterActivity(activities.CollectActivities)
	r.RegisterActivity(activities.ArchiveSnapshot)
	r.RegisterActivity(activities.PublishActivities)
}

// Start begins processing workflows and activities.
// This method blocks until an interrupt signal or Stop.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	if err := w.worker.Run(worker.InterruptCh()); err != nil {
		w.logger.Error("worker stopped with error", "error", err)
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.client.Close()
	w.logger.Info("temporal worker stopped")
}
