package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/nftmarket/service/db"
	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/metrics"
	natspkg "github.com/brojonat/nftmarket/service/nats"
)

// RefreshMarketInput contains the input parameters of one refresh run.
type RefreshMarketInput struct {
	ActivityLimit int `json:"activity_limit"`
}

// RefreshMarketResult summarizes one refresh run.
type RefreshMarketResult struct {
	Listings       int           `json:"listings"`
	Stats          market.Stats  `json:"stats"`
	StatsStatus    market.Status `json:"stats_status"`
	Activities     int           `json:"activities"`
	ActivityStatus market.Status `json:"activity_status"`
	Archived       int           `json:"archived"`
	SnapshotID     int64         `json:"snapshot_id,omitempty"`
	ArchiveSkipped bool          `json:"archive_skipped"`
	Published      int           `json:"published"`
	RefreshedAt    time.Time     `json:"refreshed_at"`
}

// LoadListingsResult contains the active listings.
type LoadListingsResult struct {
	Listings []marketplace.ListedNFT `json:"listings"`
}

// ComputeStatsInput contains parameters for the ComputeStats activity.
type ComputeStatsInput struct {
	Listings []marketplace.ListedNFT `json:"listings"`
}

// ComputeStatsResult contains the derived stats.
type ComputeStatsResult struct {
	Stats  market.Stats  `json:"stats"`
	Status market.Status `json:"status"`
}

// CollectActivitiesInput contains parameters for the CollectActivities activity.
type CollectActivitiesInput struct {
	Listings []marketplace.ListedNFT `json:"listings"`
	Limit    int                     `json:"limit"`
}

// CollectActivitiesResult contains the recent activity feed.
type CollectActivitiesResult struct {
	Activities []market.Activity `json:"activities"`
	Status     market.Status     `json:"status"`
}

// ArchiveSnapshotInput contains parameters for the ArchiveSnapshot activity.
type ArchiveSnapshotInput struct {
	Stats      market.Stats      `json:"stats"`
	Status     market.Status     `json:"status"`
	Activities []market.Activity `json:"activities"`
	TakenAt    time.Time         `json:"taken_at"`
}

// ArchiveSnapshotResult reports what the archive accepted. NewSignatures
// lists the activities the archive had not seen before and is meaningful
// only when Skipped is false.
type ArchiveSnapshotResult struct {
	Skipped       bool     `json:"skipped"`
	SnapshotID    int64    `json:"snapshot_id,omitempty"`
	Inserted      int      `json:"inserted"`
	NewSignatures []string `json:"new_signatures,omitempty"`
}

// PublishActivitiesInput contains parameters for the PublishActivities activity.
type PublishActivitiesInput struct {
	Activities []market.Activity `json:"activities"`
}

// PublishActivitiesResult contains the number of published events.
type PublishActivitiesResult struct {
	Published int `json:"published"`
}

// ListingLoader loads the active, enriched listings.
type ListingLoader interface {
	FetchAllActiveListings(ctx context.Context) ([]marketplace.ListedNFT, error)
}

// MarketAggregator derives stats and activity from a listing set.
type MarketAggregator interface {
	StatsFor(ctx context.Context, nfts []marketplace.ListedNFT) market.Stats
	RecentActivities(ctx context.Context, nfts []marketplace.ListedNFT, limit int) ([]market.Activity, market.Status)
}

// StoreInterface defines the archive operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	ActivitySignatures(ctx context.Context, since time.Time) ([]string, error)
	UpsertActivities(ctx context.Context, activities []market.Activity) (int, error)
	InsertSnapshot(ctx context.Context, stats market.Stats, status market.Status, takenAt time.Time) (*db.Snapshot, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishActivityBatch(ctx context.Context, events []*natspkg.ActivityEvent) (int, error)
}

// Activities holds the dependencies needed by Temporal activities.
// Store and publisher are optional.
type Activities struct {
	listings   ListingLoader
	aggregator MarketAggregator
	store      StoreInterface
	publisher  PublisherInterface
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	listings ListingLoader,
	aggregator MarketAggregator,
	store StoreInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		listings:   listings,
		aggregator: aggregator,
		store:      store,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
}

func (a *Activities) observe(activity string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds())
	}
}

// LoadListings fetches the active listings. Unlike the request path, a
// failure here is returned so Temporal can retry it.
func (a *Activities) LoadListings(ctx context.Context) (*LoadListingsResult, error) {
	defer a.observe("LoadListings", time.Now())

	nfts, err := a.listings.FetchAllActiveListings(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to load listings", "error", err)
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	a.logger.InfoContext(ctx, "loaded listings", "count", len(nfts))
	return &LoadListingsResult{Listings: nfts}, nil
}

// ComputeStats derives stats from the listings, or the defaults when
// there are none.
func (a *Activities) ComputeStats(ctx context.Context, input ComputeStatsInput) (*ComputeStatsResult, error) {
	defer a.observe("ComputeStats", time.Now())

	if len(input.Listings) == 0 {
		return &ComputeStatsResult{Stats: market.DefaultStats(), Status: market.Status{Source: market.SourceDefault}}, nil
	}

	stats := a.aggregator.StatsFor(ctx, input.Listings)
	a.logger.InfoContext(ctx, "computed stats",
		"total_sales", stats.TotalSales,
		"total_volume", stats.TotalVolume.String(),
	)
	return &ComputeStatsResult{Stats: stats, Status: market.Status{Source: market.SourceChain}}, nil
}

// CollectActivities builds the recent activity feed.
func (a *Activities) CollectActivities(ctx context.Context, input CollectActivitiesInput) (*CollectActivitiesResult, error) {
	defer a.observe("CollectActivities", time.Now())

	activities, status := a.aggregator.RecentActivities(ctx, input.Listings, input.Limit)
	a.logger.InfoContext(ctx, "collected activities",
		"count", len(activities),
		"source", status.Source,
		"reason", status.Reason,
	)
	return &CollectActivitiesResult{Activities: activities, Status: status}, nil
}

// ArchiveSnapshot stores the stats and the signed activities. It is a
// no-op when no store is configured.
func (a *Activities) ArchiveSnapshot(ctx context.Context, input ArchiveSnapshotInput) (*ArchiveSnapshotResult, error) {
	defer a.observe("ArchiveSnapshot", time.Now())

	if a.store == nil {
		a.logger.DebugContext(ctx, "archive disabled, skipping snapshot")
		return &ArchiveSnapshotResult{Skipped: true}, nil
	}

	signed := signedActivities(input.Activities)
	var newSigs []string
	if len(signed) > 0 {
		oldest := signed[0].Timestamp
		for _, act := range signed[1:] {
			if act.Timestamp.Before(oldest) {
				oldest = act.Timestamp
			}
		}
		known, err := a.store.ActivitySignatures(ctx, oldest)
		if err != nil {
			return nil, fmt.Errorf("failed to get archived signatures: %w", err)
		}
		seen := make(map[string]bool, len(known))
		for _, sig := range known {
			seen[sig] = true
		}
		newSigs = make([]string, 0, len(signed))
		for _, act := range signed {
			if !seen[act.Signature] {
				newSigs = append(newSigs, act.Signature)
			}
		}
	}

	inserted, err := a.store.UpsertActivities(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("failed to archive activities: %w", err)
	}

	snap, err := a.store.InsertSnapshot(ctx, input.Stats, input.Status, input.TakenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to archive snapshot: %w", err)
	}

	a.logger.InfoContext(ctx, "archived market snapshot",
		"snapshot_id", snap.ID,
		"activities_inserted", inserted,
		"new_signatures", len(newSigs),
	)

	return &ArchiveSnapshotResult{SnapshotID: snap.ID, Inserted: inserted, NewSignatures: newSigs}, nil
}

// PublishActivities publishes one event per signed activity.
func (a *Activities) PublishActivities(ctx context.Context, input PublishActivitiesInput) (*PublishActivitiesResult, error) {
	defer a.observe("PublishActivities", time.Now())

	if a.publisher == nil {
		return &PublishActivitiesResult{}, nil
	}

	signed := signedActivities(input.Activities)
	events := make([]*natspkg.ActivityEvent, 0, len(signed))
	for _, act := range signed {
		events = append(events, natspkg.FromActivity(act))
	}
	if len(events) == 0 {
		return &PublishActivitiesResult{}, nil
	}

	published, err := a.publisher.PublishActivityBatch(ctx, events)
	if err != nil && published == 0 {
		return nil, fmt.Errorf("failed to publish activities: %w", err)
	}
	if err != nil {
		a.logger.WarnContext(ctx, "some activity events were not published",
			"published", published,
			"total", len(events),
			"error", err,
		)
	}
	return &PublishActivitiesResult{Published: published}, nil
}

// signedActivities drops synthetic entries, which carry no signature.
func signedActivities(activities []market.Activity) []market.Activity {
	out := make([]market.Activity, 0, len(activities))
	for _, act := range activities {
		if act.Signature != "" {
			out = append(out, act)
		}
	}
	return out
}
