package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*ActivityEvent
	seen            map[string]bool
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*ActivityEvent, 0),
		seen:            make(map[string]bool),
	}
}

// PublishActivity records the event and returns any configured error.
// Like JetStream, a repeated signature is accepted but not recorded twice.
func (m *MockPublisher) PublishActivity(ctx context.Context, event *ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	if m.seen[event.Signature] {
		return nil
	}
	m.seen[event.Signature] = true
	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishActivityBatch records the events and returns any configured error.
func (m *MockPublisher) PublishActivityBatch(ctx context.Context, events []*ActivityEvent) (int, error) {
	published := 0
	var lastErr error
	for _, event := range events {
		if err := m.PublishActivity(ctx, event); err != nil {
			lastErr = err
			continue
		}
		published++
	}
	return published, lastErr
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*ActivityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ActivityEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForKind returns events published for one activity kind.
func (m *MockPublisher) GetPublishedEventsForKind(kind string) []*ActivityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ActivityEvent, 0)
	for _, event := range m.publishedEvents {
		if event.Kind == kind {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
