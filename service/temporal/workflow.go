package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/nftmarket/service/market"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// RefreshMarketWorkflow recomputes the market view on a schedule:
//  1. LoadListings
//  2. ComputeStats and CollectActivities, concurrently
//  3. ArchiveSnapshot (a no-op without a database)
//  4. PublishActivities for activities the archive had not seen
//
// Activities are retried here; the request path keeps its no-retry contract.
func RefreshMarketWorkflow(ctx workflow.Context, input RefreshMarketInput) (*RefreshMarketResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("RefreshMarketWorkflow started", "activity_limit", input.ActivityLimit)

	limit := input.ActivityLimit
	if limit <= 0 {
		limit = market.DefaultActivityLimit
	}

	result := &RefreshMarketResult{RefreshedAt: workflow.Now(ctx)}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var listings *LoadListingsResult
	if err := workflow.ExecuteActivity(ctx, a.LoadListings).Get(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}
	result.Listings = len(listings.Listings)

	statsFuture := workflow.ExecuteActivity(ctx, a.ComputeStats, ComputeStatsInput{Listings: listings.Listings})
	activitiesFuture := workflow.ExecuteActivity(ctx, a.CollectActivities, CollectActivitiesInput{
		Listings: listings.Listings,
		Limit:    limit,
	})

	var stats *ComputeStatsResult
	if err := statsFuture.Get(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	result.Stats = stats.Stats
	result.StatsStatus = stats.Status

	var collected *CollectActivitiesResult
	if err := activitiesFuture.Get(ctx, &collected); err != nil {
		return nil, fmt.Errorf("failed to collect activities: %w", err)
	}
	result.Activities = len(collected.Activities)
	result.ActivityStatus = collected.Status

	var archived *ArchiveSnapshotResult
	err := workflow.ExecuteActivity(ctx, a.ArchiveSnapshot, ArchiveSnapshotInput{
		Stats:      stats.Stats,
		Status:     stats.Status,
		Activities: collected.Activities,
		TakenAt:    result.RefreshedAt,
	}).Get(ctx, &archived)
	if err != nil {
		return nil, fmt.Errorf("failed to archive snapshot: %w", err)
	}
	result.ArchiveSkipped = archived.Skipped
	result.Archived = archived.Inserted
	result.SnapshotID = archived.SnapshotID

	toPublish := collected.Activities
	if !archived.Skipped {
		toPublish = filterBySignature(collected.Activities, archived.NewSignatures)
	}
	if len(toPublish) == 0 {
		logger.Info("RefreshMarketWorkflow completed, nothing new to publish", "listings", result.Listings)
		return result, nil
	}

	var published *PublishActivitiesResult
	err = workflow.ExecuteActivity(ctx, a.PublishActivities, PublishActivitiesInput{Activities: toPublish}).Get(ctx, &published)
	if err != nil {
		// Publishing is best effort.
		logger.Warn("failed to publish activities", "error", err)
	} else {
		result.Published = published.Published
	}

	logger.Info("RefreshMarketWorkflow completed",
		"listings", result.Listings,
		"activities", result.Activities,
		"archived", result.Archived,
		"published", result.Published,
	)
	return result, nil
}

func filterBySignature(activities []market.Activity, signatures []string) []market.Activity {
	keep := make(map[string]bool, len(signatures))
	for _, sig := range signatures {
		keep[sig] = true
	}
	out := make([]market.Activity, 0, len(signatures))
	for _, act := range activities {
		if keep[act.Signature] {
			out = append(out, act)
		}
	}
	return out
}
