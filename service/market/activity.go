package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/solana"
)

// activitySignature is a fetched signature with the NFT it was found for.
type activitySignature struct {
	info solana.SignatureInfo
	nft  marketplace.ListedNFT
}

// RecentActivities reconstructs the most recent marketplace activity of nfts.
// At most activityMints NFTs are queried for activitySigsPerMint signatures
// each; the newest limit signatures are classified. It never returns an
// empty feed: when nothing is classifiable the default feed is returned.
func (a *Aggregator) RecentActivities(ctx context.Context, nfts []marketplace.ListedNFT, limit int) ([]Activity, Status) {
	start := time.Now()
	activities, status := a.recentActivities(ctx, nfts, limit)
	a.observe("recent_activities", start, status)
	return activities, status
}

func (a *Aggregator) recentActivities(ctx context.Context, nfts []marketplace.ListedNFT, limit int) ([]Activity, Status) {
	now := a.now()
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if len(nfts) == 0 {
		return DefaultActivities(now), Status{Source: SourceDefault}
	}

	queried := nfts
	if len(queried) > activityMints {
		queried = queried[:activityMints]
	}

	perMint := make([][]activitySignature, len(queried))
	failed := make([]bool, len(queried))
	forEach(len(queried), func(i int) {
		nft := queried[i]
		if nft.Mint == "" {
			return
		}
		sigs, err := a.chain.Signatures(ctx, nft.Mint, activitySigsPerMint)
		if err != nil {
			a.logger.WarnContext(ctx, "failed to fetch signatures for mint",
				"mint", nft.Mint,
				"error", err,
			)
			failed[i] = true
			return
		}
		for _, s := range sigs {
			perMint[i] = append(perMint[i], activitySignature{info: s, nft: nft})
		}
	})

	var all []activitySignature
	failures := 0
	for i, sigs := range perMint {
		all = append(all, sigs...)
		if failed[i] {
			failures++
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return blockTimeOrZero(all[i].info.BlockTime) > blockTimeOrZero(all[j].info.BlockTime)
	})
	if len(all) > limit {
		all = all[:limit]
	}

	sigs := make([]string, len(all))
	for i, s := range all {
		sigs[i] = s.info.Signature
	}
	txs := a.fetchTransactions(ctx, sigs)

	activities := make([]Activity, 0, len(txs))
	for i, tx := range txs {
		if tx == nil {
			continue
		}
		act := solana.ClassifyActivity(tx)
		if a.metrics != nil {
			a.metrics.RecordClassification(string(act.Kind))
		}
		if act.Kind == solana.KindUnknown {
			continue
		}
		activities = append(activities, toActivity(act, tx, all[i].nft, now))
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Timestamp.After(activities[j].Timestamp)
	})

	if len(activities) == 0 {
		status := Status{Source: SourceDefault}
		if failures > 0 {
			status.Reason = fmt.Sprintf("signature fetch failed for %d of %d mints", failures, len(queried))
		}
		a.logger.WarnContext(ctx, "no classifiable activity, using defaults",
			"nfts", len(queried),
			"signatures", len(sigs),
			"failures", failures,
		)
		return DefaultActivities(now), status
	}
	return activities, Status{Source: SourceChain}
}

func toActivity(act solana.Activity, tx *solana.TransactionRecord, nft marketplace.ListedNFT, now time.Time) Activity {
	ts := tx.Timestamp(now)
	name := nft.Name
	if name == "" {
		name = "NFT"
	}
	return Activity{
		ID:        ActivityID(tx.Signature),
		Kind:      act.Kind,
		Actor:     act.Actor,
		Target:    act.Target,
		NFTMint:   nft.Mint,
		NFTName:   name,
		NFTImage:  nft.Image,
		Price:     act.Price,
		TimeAgo:   solana.FormatElapsed(now, ts),
		Timestamp: ts,
		Signature: tx.Signature,
	}
}

// ActivityID is the short feed identifier of a signature.
func ActivityID(signature string) string {
	if len(signature) > 8 {
		return signature[:8]
	}
	return signature
}
