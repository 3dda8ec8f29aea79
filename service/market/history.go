package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brojonat/nftmarket/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// TransferHistory reconstructs the ownership changes of mint from its
// historySignatures most recent transactions, newest first. Transactions
// that fail to load or are not transfer-like are skipped; an empty result
// is not an error. Only an invalid mint returns an error.
func (a *Aggregator) TransferHistory(ctx context.Context, mint string) ([]TransferRecord, Status, error) {
	if mint == "" {
		return nil, Status{}, fmt.Errorf("mint address is required: %w", ErrInvalidMint)
	}
	if _, err := solanago.PublicKeyFromBase58(mint); err != nil {
		return nil, Status{}, fmt.Errorf("%q: %w", mint, ErrInvalidMint)
	}

	start := time.Now()
	records, status := a.transferHistory(ctx, mint)
	a.observe("transfer_history", start, status)
	return records, status, nil
}

func (a *Aggregator) transferHistory(ctx context.Context, mint string) ([]TransferRecord, Status) {
	sigs, err := a.chain.Signatures(ctx, mint, historySignatures)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to fetch transfer signatures",
			"mint", mint,
			"error", err,
		)
		return []TransferRecord{}, Status{Source: SourceEmpty, Reason: err.Error()}
	}

	names := make([]string, len(sigs))
	for i, s := range sigs {
		names[i] = s.Signature
	}
	txs := a.fetchTransactions(ctx, names)

	now := a.now()
	records := make([]TransferRecord, 0, len(txs))
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		tr, ok := solana.ClassifyTransfer(tx, mint)
		if !ok {
			continue
		}
		records = append(records, TransferRecord{
			Signature:     tx.Signature,
			BlockTime:     tx.BlockTime,
			Timestamp:     tx.Timestamp(now),
			Sender:        tr.Sender,
			Recipient:     tr.Recipient,
			Success:       tr.Success,
			Type:          tr.Type,
			LowConfidence: tr.LowConfidence,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return blockTimeOrZero(records[i].BlockTime) > blockTimeOrZero(records[j].BlockTime)
	})

	a.logger.DebugContext(ctx, "reconstructed transfer history",
		"mint", mint,
		"signatures", len(sigs),
		"transfers", len(records),
	)
	if len(records) == 0 {
		return records, Status{Source: SourceEmpty}
	}
	return records, Status{Source: SourceChain}
}
