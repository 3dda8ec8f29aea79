package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/metrics"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// ErrNoSnapshot is returned by LatestSnapshot when nothing has been archived.
var ErrNoSnapshot = errors.New("no market snapshot archived")

// Store archives classified activities and market snapshots. Nothing read
// from it feeds the aggregators; they always recompute from chain data.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If m is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Snapshot is an archived stats result.
type Snapshot struct {
	ID      int64
	Stats   market.Stats
	Status  market.Status
	TakenAt time.Time
}

// Migrate creates the archive tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// UpsertActivities archives activities keyed by signature and returns how
// many were new. Activities without a signature are skipped.
func (s *Store) UpsertActivities(ctx context.Context, activities []market.Activity) (int, error) {
	start := time.Now()

	batch := &pgx.Batch{}
	for _, a := range activities {
		if a.Signature == "" {
			continue
		}
		batch.Queue(`
			INSERT INTO activities (signature, kind, actor, target, mint, name, price, block_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
			ON CONFLICT (signature) DO NOTHING`,
			a.Signature, string(a.Kind), a.Actor, a.Target, a.NFTMint, a.NFTName,
			priceText(a.Price), a.Timestamp.UTC(),
		)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			s.record("upsert_activities", "activities", start, err)
			return inserted, fmt.Errorf("failed to insert activity: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	s.record("upsert_activities", "activities", start, nil)
	return inserted, nil
}

// ListActivities returns up to limit archived activities, newest first.
func (s *Store) ListActivities(ctx context.Context, limit int) ([]market.Activity, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT signature, kind, actor, target, mint, name, price::text, block_time
		FROM activities
		ORDER BY block_time DESC, signature
		LIMIT $1`, limit)
	if err != nil {
		s.record("list_activities", "activities", start, err)
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanActivity)
	s.record("list_activities", "activities", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to scan activities: %w", err)
	}
	return out, nil
}

// ActivitySignatures returns the signatures of activities with a block time
// at or after since.
func (s *Store) ActivitySignatures(ctx context.Context, since time.Time) ([]string, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT signature FROM activities WHERE block_time >= $1 ORDER BY block_time DESC`,
		since.UTC())
	if err != nil {
		s.record("activity_signatures", "activities", start, err)
		return nil, fmt.Errorf("failed to query signatures: %w", err)
	}

	sigs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	s.record("activity_signatures", "activities", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to scan signatures: %w", err)
	}
	return sigs, nil
}

// InsertSnapshot archives one stats result.
func (s *Store) InsertSnapshot(ctx context.Context, stats market.Stats, status market.Status, takenAt time.Time) (*Snapshot, error) {
	start := time.Now()
	snap := &Snapshot{Stats: stats, Status: status}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO market_snapshots (total_volume, total_sales, total_creators, avg_price, source, reason, taken_at)
		VALUES ($1::numeric, $2, $3, $4::numeric, $5, $6, $7)
		RETURNING id, taken_at`,
		stats.TotalVolume.String(), stats.TotalSales, stats.TotalCreators, stats.AvgPrice.String(),
		string(status.Source), status.Reason, takenAt.UTC(),
	).Scan(&snap.ID, &snap.TakenAt)
	s.record("insert_snapshot", "market_snapshots", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot or ErrNoSnapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	var (
		snap           Snapshot
		volume, avg    string
		source, reason string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, total_volume::text, total_sales, total_creators, avg_price::text, source, reason, taken_at
		FROM market_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1`,
	).Scan(&snap.ID, &volume, &snap.Stats.TotalSales, &snap.Stats.TotalCreators, &avg, &source, &reason, &snap.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		s.record("latest_snapshot", "market_snapshots", start, nil)
		return nil, ErrNoSnapshot
	}
	s.record("latest_snapshot", "market_snapshots", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	if snap.Stats.TotalVolume, err = decimal.NewFromString(volume); err != nil {
		return nil, fmt.Errorf("failed to parse total volume %q: %w", volume, err)
	}
	if snap.Stats.AvgPrice, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("failed to parse average price %q: %w", avg, err)
	}
	snap.Status = market.Status{Source: market.Source(source), Reason: reason}
	return &snap, nil
}

func scanActivity(row pgx.CollectableRow) (market.Activity, error) {
	var (
		a     market.Activity
		kind  string
		price *string
	)
	if err := row.Scan(&a.Signature, &kind, &a.Actor, &a.Target, &a.NFTMint, &a.NFTName, &price, &a.Timestamp); err != nil {
		return a, err
	}
	a.Kind = chain.ActivityKind(kind)
	a.ID = market.ActivityID(a.Signature)
	if price != nil {
		p, err := decimal.NewFromString(*price)
		if err != nil {
			return a, fmt.Errorf("invalid price %q: %w", *price, err)
		}
		a.Price = &p
	}
	return a, nil
}

func priceText(p *decimal.Decimal) *string {
	if p == nil {
		return nil
	}
	s := p.String()
	return &s
}

func (s *Store) record(operation, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}
