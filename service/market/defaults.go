package market

import (
	"time"

	"github.com/brojonat/nftmarket/service/solana"
	"github.com/shopspring/decimal"
)

// Addresses used by the synthetic default feeds.
const (
	defaultAddressA = "9xQFeg4cCJBLdP1LfJ1GgJQBBLKR5zLxbMPXPUKPQTZi"
	defaultAddressB = "EH32h76T5Ram1BwgJeNQvmJTUX1pzAsk6SACjNUfcTq7"
	defaultAddressC = "GnBksP15L4zVNdj5SXGm3DyghAtBv2yRQnS93jNrJ3Sg"
)

// DefaultActivities returns the fixed sale, list, mint feed shown when no
// activity can be reconstructed. Timestamps are relative to now.
func DefaultActivities(now time.Time) []Activity {
	entry := func(id string, kind solana.ActivityKind, actor, target, name string, price *decimal.Decimal, age time.Duration) Activity {
		ts := now.Add(-age)
		return Activity{
			ID:        id,
			Kind:      kind,
			Actor:     actor,
			Target:    target,
			NFTName:   name,
			Price:     price,
			TimeAgo:   solana.FormatElapsed(now, ts),
			Timestamp: ts,
		}
	}
	five := decimal.NewFromInt(5)
	twelve := decimal.NewFromInt(12)
	return []Activity{
		entry("default1", solana.KindSale, defaultAddressA, defaultAddressB, "NFT #123", &five, 2*time.Hour),
		entry("default2", solana.KindList, defaultAddressB, "", "NFT #456", &twelve, 3*time.Hour),
		entry("default3", solana.KindMint, defaultAddressC, "", "NFT #789", nil, 5*time.Hour),
	}
}

// DefaultSellers returns the fixed leaderboard shown when no seller is known.
func DefaultSellers() []SellerSummary {
	return []SellerSummary{
		{Address: defaultAddressA, Sales: 3, ListedNFTs: 5, Avatar: RankAvatar(0)},
		{Address: defaultAddressB, Sales: 2, ListedNFTs: 3, Avatar: RankAvatar(1)},
		{Address: defaultAddressC, Sales: 1, ListedNFTs: 2, Avatar: RankAvatar(2)},
	}
}

// DefaultStats returns the fixed snapshot shown when stats cannot be derived.
func DefaultStats() Stats {
	return Stats{
		TotalVolume:   decimal.RequireFromString("825.42"),
		TotalSales:    37,
		TotalCreators: 18,
		AvgPrice:      decimal.RequireFromString("22.31"),
	}
}
