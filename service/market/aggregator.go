package market

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/metrics"
	"github.com/brojonat/nftmarket/service/solana"
)

// Batch caps. They keep each aggregation within what a public RPC endpoint
// tolerates and must not be raised casually.
const (
	DefaultActivityLimit = 5
	activityMints        = 5
	activitySigsPerMint  = 3
	historySignatures    = 25
	statsMints           = 5
	statsSigsPerMint     = 10
	topSellers           = 3

	// fetchConcurrency bounds in-flight RPC calls of one fan-out.
	fetchConcurrency = 8
)

// ChainReader fetches signatures and normalized transactions.
type ChainReader interface {
	Signatures(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error)
	Transaction(ctx context.Context, signature string) (*solana.TransactionRecord, error)
}

// ListingSource loads the currently active, metadata-enriched listings.
type ListingSource interface {
	FetchAllActiveListings(ctx context.Context) ([]marketplace.ListedNFT, error)
}

// Aggregator reconstructs activity, transfer history and market statistics
// from chain data. Every call recomputes from scratch; nothing is cached.
type Aggregator struct {
	chain    ChainReader
	listings ListingSource
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAggregator creates an Aggregator. listings may be nil when only
// RecentActivities, TransferHistory and TopSellers are used.
func NewAggregator(chain ChainReader, listings ListingSource, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		chain:    chain,
		listings: listings,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

func (a *Aggregator) observe(operation string, start time.Time, status Status) {
	if a.metrics != nil {
		a.metrics.RecordAggregation(operation, string(status.Source), time.Since(start).Seconds())
	}
}

// fetchTransactions fetches sigs in parallel. Failed or unknown fetches
// leave a nil entry; results keep the order of sigs.
func (a *Aggregator) fetchTransactions(ctx context.Context, sigs []string) []*solana.TransactionRecord {
	out := make([]*solana.TransactionRecord, len(sigs))
	forEach(len(sigs), func(i int) {
		tx, err := a.chain.Transaction(ctx, sigs[i])
		if err != nil {
			a.logger.WarnContext(ctx, "failed to fetch transaction",
				"signature", sigs[i],
				"error", err,
			)
			return
		}
		out[i] = tx
	})
	return out
}

func blockTimeOrZero(bt *int64) int64 {
	if bt == nil {
		return 0
	}
	return *bt
}
