package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/nftmarket/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing activity events to NATS.
type Publisher interface {
	// PublishActivity publishes a single event to "activity.{kind}".
	PublishActivity(ctx context.Context, event *ActivityEvent) error

	// PublishActivityBatch publishes events and returns how many were accepted.
	PublishActivityBatch(ctx context.Context, events []*ActivityEvent) (int, error)

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes activity events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for activity.
	StreamName = "MARKET_ACTIVITY"

	// SubjectPrefix prefixes the kind of every event subject.
	SubjectPrefix = "activity."

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "activity.>"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour

	// DuplicateWindow is how long JetStream remembers message ids.
	DuplicateWindow = 24 * time.Hour
)

// Connect dials NATS with reconnect settings shared by every binary.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. If m is nil, no
// metrics will be recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "nftmarket-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := EnsureStream(context.Background(), js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// EnsureStream creates the activity stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		if info, err := stream.Info(ctx); err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Classified NFT marketplace activity",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Duplicates:  DuplicateWindow,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishActivity publishes a single event. The signature is the message
// id, so republishing an activity inside the duplicate window is a no-op.
func (p *JetStreamPublisher) PublishActivity(ctx context.Context, event *ActivityEvent) error {
	subject := event.Subject()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	start := time.Now()
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.Signature))
	p.record(subject, start, err)
	if err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}

	p.logger.DebugContext(ctx, "published activity event",
		"subject", subject,
		"signature", event.Signature,
		"duplicate", ack.Duplicate,
	)

	return nil
}

// PublishActivityBatch publishes events one by one, continuing past
// failures. The returned error reports the last failure.
func (p *JetStreamPublisher) PublishActivityBatch(ctx context.Context, events []*ActivityEvent) (int, error) {
	var (
		published int
		lastErr   error
	)
	for _, event := range events {
		if err := p.PublishActivity(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish activity in batch",
				"signature", event.Signature,
				"error", err,
			)
			lastErr = err
			continue
		}
		published++
	}

	p.logger.DebugContext(ctx, "published activity batch",
		"count", published,
		"failed", len(events)-published,
	)
	return published, lastErr
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}

func (p *JetStreamPublisher) record(subject string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
}
