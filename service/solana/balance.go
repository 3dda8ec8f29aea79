package solana

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// NativeDelta is the lamport change of one account in a transaction.
type NativeDelta struct {
	AccountIndex int   `json:"account_index"`
	Delta        int64 `json:"delta"` // post - pre
}

// Holder is an owner and its raw token amount for a single mint.
type Holder struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// TokenDiff holds the pre and post holders of one mint.
type TokenDiff struct {
	PreHolders  []Holder `json:"pre_holders"`
	PostHolders []Holder `json:"post_holders"`
}

// DiffNativeBalances returns post-pre per account index.
// Missing or empty balance arrays yield an empty result.
func DiffNativeBalances(tx *TransactionRecord) []NativeDelta {
	if tx == nil || len(tx.PreBalances) == 0 || len(tx.PostBalances) == 0 {
		return []NativeDelta{}
	}
	n := min(len(tx.PreBalances), len(tx.PostBalances))
	deltas := make([]NativeDelta, 0, n)
	for i := 0; i < n; i++ {
		deltas = append(deltas, NativeDelta{
			AccountIndex: i,
			Delta:        int64(tx.PostBalances[i]) - int64(tx.PreBalances[i]),
		})
	}
	return deltas
}

// DiffTokenBalances restricts the token balances of tx to the given mint.
func DiffTokenBalances(tx *TransactionRecord, mint string) TokenDiff {
	diff := TokenDiff{PreHolders: []Holder{}, PostHolders: []Holder{}}
	if tx == nil {
		return diff
	}
	for _, b := range tx.PreTokenBalances {
		if b.Mint == mint {
			diff.PreHolders = append(diff.PreHolders, Holder{Owner: b.Owner, Amount: b.Amount})
		}
	}
	for _, b := range tx.PostTokenBalances {
		if b.Mint == mint {
			diff.PostHolders = append(diff.PostHolders, Holder{Owner: b.Owner, Amount: b.Amount})
		}
	}
	return diff
}

// LargestNativeLoss returns the largest pre-post lamport decrease of any
// account, or 0 when no account lost lamports.
//
// Used as a price fallback. It is a proxy only: the payer's loss includes
// fees and rent on top of the listing price.
func LargestNativeLoss(tx *TransactionRecord) uint64 {
	var largest uint64
	for _, d := range DiffNativeBalances(tx) {
		if d.Delta < 0 && uint64(-d.Delta) > largest {
			largest = uint64(-d.Delta)
		}
	}
	return largest
}

// LamportsToSOL converts lamports to SOL exactly.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}

// SOLToLamports converts SOL to lamports, truncating sub-lamport precision.
// ok is false for negative amounts and amounts that do not fit in a u64.
func SOLToLamports(sol decimal.Decimal) (lamports uint64, ok bool) {
	if sol.IsNegative() {
		return 0, false
	}
	n := sol.Shift(9).BigInt()
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

// firstFunded returns the owner of the first holder with a positive amount.
// The owner is "" when that holder carries no owner.
func firstFunded(holders []Holder) (string, bool) {
	for _, h := range holders {
		if h.Amount > 0 {
			return h.Owner, h.Owner != ""
		}
	}
	return "", false
}
