package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	exists    bool
	interval  time.Duration
	input     RefreshMarketInput
	upserts   int
	upsertErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

// UpsertRefreshSchedule records the schedule.
func (m *MockScheduler) UpsertRefreshSchedule(ctx context.Context, interval time.Duration, input RefreshMarketInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.exists = true
	m.interval = interval
	m.input = input
	m.upserts++
	return nil
}

// DeleteRefreshSchedule removes the recorded schedule.
func (m *MockScheduler) DeleteRefreshSchedule(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	if !m.exists {
		return fmt.Errorf("schedule %q not found", RefreshScheduleID)
	}
	m.exists = false
	return nil
}

// SetUpsertError makes UpsertRefreshSchedule return an error.
func (m *MockScheduler) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// SetDeleteError makes DeleteRefreshSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// Schedule returns the recorded interval and input, and whether a schedule exists.
func (m *MockScheduler) Schedule() (time.Duration, RefreshMarketInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval, m.input, m.exists
}

// UpsertCount returns how many upserts succeeded.
func (m *MockScheduler) UpsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}
