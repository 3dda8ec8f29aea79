package market

import (
	"errors"
	"time"

	"github.com/brojonat/nftmarket/service/solana"
	"github.com/shopspring/decimal"
)

// ErrInvalidMint is returned when a mint address is missing or malformed.
var ErrInvalidMint = errors.New("invalid mint address")

// Source tells where an aggregation result came from.
type Source string

const (
	// SourceChain means the result was reconstructed from chain data.
	SourceChain Source = "chain"
	// SourceDefault means the synthetic default result was returned.
	SourceDefault Source = "default"
	// SourceEmpty means nothing was found; not used for defaulted feeds.
	SourceEmpty Source = "empty"
)

// Status accompanies every aggregation result so callers can tell a
// legitimately empty or default result from one that followed a failure.
// Reason is set only when something failed.
type Status struct {
	Source Source `json:"source"`
	Reason string `json:"reason,omitempty"`
}

// Degraded reports whether the result followed a failure.
func (s Status) Degraded() bool {
	return s.Reason != ""
}

// Activity is one entry of the recent-activity feed.
type Activity struct {
	ID        string              `json:"id"`
	Kind      solana.ActivityKind `json:"type"`
	Actor     string              `json:"actor"`
	Target    string              `json:"target,omitempty"`
	NFTMint   string              `json:"nft_mint,omitempty"`
	NFTName   string              `json:"nft_name"`
	NFTImage  string              `json:"nft_image,omitempty"`
	Price     *decimal.Decimal    `json:"price"` // SOL
	TimeAgo   string              `json:"time_ago"`
	Timestamp time.Time           `json:"timestamp"`
	Signature string              `json:"signature,omitempty"`
}

// TransferRecord is one entry of a mint's transfer history.
type TransferRecord struct {
	Signature     string              `json:"signature"`
	BlockTime     *int64              `json:"block_time,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	Sender        string              `json:"sender"`
	Recipient     string              `json:"recipient"`
	Success       bool                `json:"success"`
	Type          solana.TransferType `json:"type"`
	LowConfidence bool                `json:"low_confidence,omitempty"`
}

// SellerSummary is one row of the seller leaderboard. Sales counts the
// seller's currently priced listings, not historical sales.
type SellerSummary struct {
	Address    string `json:"address"`
	ListedNFTs int    `json:"listed_nfts"`
	Sales      int    `json:"sales"`
	Avatar     string `json:"avatar"`
}

// Stats is the aggregate market snapshot.
type Stats struct {
	TotalVolume   decimal.Decimal `json:"total_volume"` // SOL, 2 decimals
	TotalSales    int             `json:"total_sales"`
	TotalCreators int             `json:"total_creators"`
	AvgPrice      decimal.Decimal `json:"avg_price"` // SOL, 2 decimals
}
