package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/nftmarket/service/metrics"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}, nil
}

func (c *Client) workflowAction(input RefreshMarketInput) *client.ScheduleWorkflowAction {
	return &client.ScheduleWorkflowAction{
		ID:        RefreshScheduleID + "-run",
		Workflow:  RefreshMarketWorkflow,
		TaskQueue: c.taskQueue,
		Args:      []interface{}{input},
	}
}

// CreateRefreshSchedule creates the market refresh schedule.
func (c *Client) CreateRefreshSchedule(ctx context.Context, interval time.Duration, input RefreshMarketInput) error {
	c.logger.DebugContext(ctx, "creating refresh schedule",
		"schedule_id", RefreshScheduleID,
		"interval", interval,
	)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: RefreshScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: c.workflowAction(input),
		Memo: map[string]interface{}{
			"activity_limit": input.ActivityLimit,
			"created_by":     "nftmarket",
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create schedule",
			"schedule_id", RefreshScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", RefreshScheduleID, err)
	}

	c.logger.InfoContext(ctx, "refresh schedule created",
		"schedule_id", RefreshScheduleID,
		"interval", interval,
	)
	return nil
}

// UpsertRefreshSchedule creates the schedule or updates its interval and input.
func (c *Client) UpsertRefreshSchedule(ctx context.Context, interval time.Duration, input RefreshMarketInput) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, RefreshScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.DebugContext(ctx, "schedule not found, creating new one",
			"schedule_id", RefreshScheduleID,
			"error", err,
		)
		return c.CreateRefreshSchedule(ctx, interval, input)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			in.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{{Every: interval}}
			in.Description.Schedule.Action = c.workflowAction(input)
			return &client.ScheduleUpdate{Schedule: &in.Description.Schedule}, nil
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to update schedule",
			"schedule_id", RefreshScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", RefreshScheduleID, err)
	}

	c.logger.InfoContext(ctx, "refresh schedule updated",
		"schedule_id", RefreshScheduleID,
		"interval", interval,
	)
	return nil
}

// DeleteRefreshSchedule deletes the market refresh schedule.
func (c *Client) DeleteRefreshSchedule(ctx context.Context) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, RefreshScheduleID)
	if err := handle.Delete(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to delete schedule",
			"schedule_id", RefreshScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", RefreshScheduleID, err)
	}

	c.logger.InfoContext(ctx, "refresh schedule deleted", "schedule_id", RefreshScheduleID)
	return nil
}

// RunRefresh executes one RefreshMarketWorkflow outside the schedule and
// waits for its result.
func (c *Client) RunRefresh(ctx context.Context, input RefreshMarketInput) (*RefreshMarketResult, error) {
	start := time.Now()
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s-manual-%d", RefreshScheduleID, start.Unix()),
		TaskQueue: c.taskQueue,
	}, RefreshMarketWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow: %w", err)
	}

	c.logger.InfoContext(ctx, "refresh workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)

	var result RefreshMarketResult
	err = run.Get(ctx, &result)
	c.recordWorkflow(start, err)
	if err != nil {
		return nil, fmt.Errorf("refresh workflow failed: %w", err)
	}
	return &result, nil
}

func (c *Client) recordWorkflow(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordWorkflowDuration(status, time.Since(start).Seconds())
}

// SDKClient returns the underlying Temporal SDK client.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
