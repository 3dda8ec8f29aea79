package solana

import (
	"strings"
	"time"
)

// SignatureInfo is one entry of a getSignaturesForAddress response.
type SignatureInfo struct {
	Signature string `json:"signature"`
	BlockTime *int64 `json:"block_time,omitempty"` // Unix seconds, nil when the node does not know it
	Slot      uint64 `json:"slot"`
}

// TokenHolding is one pre/post token balance entry of a transaction.
type TokenHolding struct {
	Mint   string `json:"mint"`
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"` // raw amount in base units
}

// TransactionRecord is the normalized view of a fetched transaction.
// This is our domain model, independent of the RPC response format.
//
// AccountKeys index 0 is the fee payer. PreBalances and PostBalances are
// lamports indexed like AccountKeys. Nil token balance slices mean the node
// returned no token balance information at all, which is different from an
// empty list.
type TransactionRecord struct {
	Signature         string         `json:"signature"`
	Slot              uint64         `json:"slot"`
	BlockTime         *int64         `json:"block_time,omitempty"`
	LogMessages       []string       `json:"log_messages"`
	AccountKeys       []string       `json:"account_keys"`
	PreBalances       []uint64       `json:"pre_balances"`
	PostBalances      []uint64       `json:"post_balances"`
	PreTokenBalances  []TokenHolding `json:"pre_token_balances"`
	PostTokenBalances []TokenHolding `json:"post_token_balances"`
	Err               *string        `json:"err,omitempty"` // nil if the transaction succeeded
}

// LogText joins all log lines with a single space.
func (t *TransactionRecord) LogText() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.LogMessages, " ")
}

// Succeeded reports whether the transaction executed without error.
func (t *TransactionRecord) Succeeded() bool {
	return t != nil && t.Err == nil
}

// HasTokenBalances reports whether both token balance lists were returned.
func (t *TransactionRecord) HasTokenBalances() bool {
	return t != nil && t.PreTokenBalances != nil && t.PostTokenBalances != nil
}

// HasAccount reports whether address appears among the account keys.
func (t *TransactionRecord) HasAccount(address string) bool {
	if t == nil {
		return false
	}
	for _, k := range t.AccountKeys {
		if k == address {
			return true
		}
	}
	return false
}

// FeePayer returns accountKeys[0], or "" when there are no keys.
func (t *TransactionRecord) FeePayer() string {
	if t == nil || len(t.AccountKeys) == 0 {
		return ""
	}
	return t.AccountKeys[0]
}

// Timestamp returns the block time, or now when the block time is unknown.
func (t *TransactionRecord) Timestamp(now time.Time) time.Time {
	if t == nil || t.BlockTime == nil {
		return now
	}
	return time.Unix(*t.BlockTime, 0).UTC()
}
