package temporal

import (
	"context"
	"time"
)

// RefreshScheduleID is the id of the single market refresh schedule.
const RefreshScheduleID = "refresh-market"

// Scheduler manages the Temporal schedule that triggers RefreshMarketWorkflow.
type Scheduler interface {
	// UpsertRefreshSchedule creates the schedule, or updates its interval
	// and input when it already exists.
	UpsertRefreshSchedule(ctx context.Context, interval time.Duration, input RefreshMarketInput) error

	// DeleteRefreshSchedule deletes the schedule.
	DeleteRefreshSchedule(ctx context.Context) error
}
