package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/nftmarket/service/metrics"
	natspkg "github.com/brojonat/nftmarket/service/nats"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const sseKeepalive = 10 * time.Second

// SSEPublisher manages Server-Sent Events connections for activity streaming.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher connects to NATS and ensures the activity stream exists
// so that consumers can be attached per connection.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := natspkg.Connect(natsURL, "nftmarket-sse-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := natspkg.EnsureStream(context.Background(), js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// streamSubject maps the optional kind filter to a subject.
func streamSubject(kind string) (string, error) {
	switch chain.ActivityKind(kind) {
	case "":
		return natspkg.StreamSubjects, nil
	case chain.KindMint, chain.KindList, chain.KindSale, chain.KindCancel, chain.KindTransfer:
		return natspkg.SubjectPrefix + kind, nil
	default:
		return "", errorf("invalid kind: must be one of mint, list, sale, cancel, transfer")
	}
}

// writeSSE writes one event frame.
func writeSSE(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// handleStreamActivity streams new activity events.
// GET /api/v1/stream/activity?kind=sale
func handleStreamActivity(publisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		subject, err := streamSubject(kind)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		// The stream outlives the server write timeout.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.DebugContext(r.Context(), "could not clear write deadline", "error", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		ctx := r.Context()
		logger.DebugContext(ctx, "SSE client connected",
			"subject", subject,
			"remote_addr", r.RemoteAddr,
		)
		if m != nil {
			m.RecordSSEConnectionChange(1)
			defer m.RecordSSEConnectionChange(-1)
		}

		// Ephemeral consumer, deleted by the server when inactive.
		cons, err := publisher.js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject:     subject,
			AckPolicy:         jetstream.AckExplicitPolicy,
			DeliverPolicy:     jetstream.DeliverNewPolicy,
			InactiveThreshold: time.Minute,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to create consumer",
				"subject", subject,
				"error", err,
			)
			writeSSE(w, "error", []byte(`{"error":"failed to subscribe"}`))
			flusher.Flush()
			return
		}

		msgChan := make(chan jetstream.Msg, 10)
		doneChan := make(chan struct{})

		go func() {
			defer close(doneChan)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgChan <- msg:
				case <-ctx.Done():
				}
			})
			if err != nil {
				logger.ErrorContext(ctx, "failed to start consuming messages", "error", err)
				return
			}
			<-ctx.Done()
			cc.Stop()
		}()

		connected, _ := json.Marshal(map[string]string{"subject": subject})
		writeSSE(w, "connected", connected)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case msg := <-msgChan:
				var event natspkg.ActivityEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					logger.WarnContext(ctx, "failed to unmarshal event", "error", err)
					msg.Ack()
					continue
				}

				writeSSE(w, "activity", msg.Data())
				flusher.Flush()
				msg.Ack()

				if m != nil {
					m.RecordSSEEventSent(event.Kind)
				}
				logger.DebugContext(ctx, "sent activity event",
					"kind", event.Kind,
					"signature", event.Signature,
				)

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected",
					"subject", subject,
					"remote_addr", r.RemoteAddr,
				)
				return

			case <-doneChan:
				return
			}
		}
	})
}
