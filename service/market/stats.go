package market

import (
	"context"
	"time"

	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/solana"
	"github.com/shopspring/decimal"
)

// sale is a detected sale of one mint.
type sale struct {
	signature string
	mint      string
	price     decimal.Decimal
}

// MarketStats loads the active listings and folds the sales found in their
// recent history into a Stats snapshot. Any failure, or an empty
// marketplace, yields DefaultStats.
func (a *Aggregator) MarketStats(ctx context.Context) (Stats, Status) {
	start := time.Now()
	stats, status := a.marketStats(ctx)
	a.observe("market_stats", start, status)
	return stats, status
}

func (a *Aggregator) marketStats(ctx context.Context) (Stats, Status) {
	if a.listings == nil {
		return DefaultStats(), Status{Source: SourceDefault, Reason: "no listing source configured"}
	}
	nfts, err := a.listings.FetchAllActiveListings(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to load listings, using default stats", "error", err)
		return DefaultStats(), Status{Source: SourceDefault, Reason: err.Error()}
	}
	if len(nfts) == 0 {
		return DefaultStats(), Status{Source: SourceDefault}
	}
	return a.StatsFor(ctx, nfts), Status{Source: SourceChain}
}

// StatsFor derives stats from an already loaded listing set.
func (a *Aggregator) StatsFor(ctx context.Context, nfts []marketplace.ListedNFT) Stats {
	sales := a.salesHistory(ctx, nfts)
	return foldStats(sales, nfts)
}

func (a *Aggregator) salesHistory(ctx context.Context, nfts []marketplace.ListedNFT) []sale {
	queried := nfts
	if len(queried) > statsMints {
		queried = queried[:statsMints]
	}

	perMint := make([][]sale, len(queried))
	forEach(len(queried), func(i int) {
		mint := queried[i].Mint
		if mint == "" {
			return
		}
		sigs, err := a.chain.Signatures(ctx, mint, statsSigsPerMint)
		if err != nil {
			a.logger.WarnContext(ctx, "failed to fetch sale signatures",
				"mint", mint,
				"error", err,
			)
			return
		}
		names := make([]string, len(sigs))
		for j, s := range sigs {
			names[j] = s.Signature
		}
		for _, tx := range a.fetchTransactions(ctx, names) {
			if !solana.IsSale(tx, mint) {
				continue
			}
			price, ok := solana.ExtractPrice(tx)
			if !ok || !price.IsPositive() {
				continue
			}
			perMint[i] = append(perMint[i], sale{signature: tx.Signature, mint: mint, price: price})
		}
	})

	var sales []sale
	for _, s := range perMint {
		sales = append(sales, s...)
	}
	return sales
}

// foldStats computes the snapshot. Volume and average are rounded to two
// decimals; creators are the union of sellers and metadata creators.
func foldStats(sales []sale, nfts []marketplace.ListedNFT) Stats {
	volume := decimal.Zero
	for _, s := range sales {
		volume = volume.Add(s.price)
	}

	creators := make(map[string]struct{})
	for _, nft := range nfts {
		if nft.Seller != "" {
			creators[nft.Seller] = struct{}{}
		}
		for _, c := range nft.Creators {
			if c != "" {
				creators[c] = struct{}{}
			}
		}
	}

	avg := decimal.Zero
	if len(sales) > 0 {
		avg = volume.Div(decimal.NewFromInt(int64(len(sales))))
	}
	return Stats{
		TotalVolume:   volume.Round(2),
		TotalSales:    len(sales),
		TotalCreators: len(creators),
		AvgPrice:      avg.Round(2),
	}
}
