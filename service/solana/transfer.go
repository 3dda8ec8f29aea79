package solana

import (
	"strings"
)

// TransferType labels an entry of a mint's transfer history.
type TransferType string

const (
	TransferTypeMint     TransferType = "Mint"
	TransferTypeTransfer TransferType = "Transfer"
	TransferTypeOther    TransferType = "Autre opération"
)

// Transfer is the classification of one transaction in a mint's history.
// Sender and Recipient are "" when they could not be resolved.
type Transfer struct {
	Type      TransferType `json:"type"`
	Sender    string       `json:"sender"`
	Recipient string       `json:"recipient"`
	Success   bool         `json:"success"`

	// LowConfidence is set when the node returned no token balances and the
	// parties were guessed from account key positions.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// IsTransferLike reports whether tx touches a token program and logs a
// transfer. Transactions without logs never qualify.
func IsTransferLike(tx *TransactionRecord) bool {
	if tx == nil || len(tx.LogMessages) == 0 {
		return false
	}
	if !tx.HasAccount(TokenProgramID.String()) && !tx.HasAccount(Token2022ProgramID.String()) {
		return false
	}
	for _, line := range tx.LogMessages {
		if strings.Contains(line, "Transfer") || strings.Contains(line, "transfer") {
			return true
		}
	}
	return false
}

// ClassifyTransfer resolves the type and parties of tx with respect to mint.
// It returns false when tx is not transfer-like.
func ClassifyTransfer(tx *TransactionRecord, mint string) (Transfer, bool) {
	if !IsTransferLike(tx) {
		return Transfer{}, false
	}

	t := Transfer{
		Type:    TransferTypeTransfer,
		Success: tx.Succeeded(),
	}

	if !tx.HasTokenBalances() {
		t.Sender, t.Recipient = guessParties(tx, mint)
		t.LowConfidence = true
		return t, true
	}

	diff := DiffTokenBalances(tx, mint)
	switch {
	case len(diff.PreHolders) == 0 && len(diff.PostHolders) > 0:
		t.Type = TransferTypeMint
		if owner, ok := firstFunded(diff.PostHolders); ok {
			t.Sender = owner
			t.Recipient = owner
		}
	case len(diff.PreHolders) > 0 && len(diff.PostHolders) > 0:
		t.Type = TransferTypeTransfer
		if owner, ok := firstFunded(diff.PreHolders); ok {
			t.Sender = owner
		}
		if owner, ok := firstFunded(diff.PostHolders); ok {
			t.Recipient = owner
		}
	default:
		t.Type = TransferTypeOther
		t.Sender = tx.FeePayer()
	}

	return t, true
}

// guessParties picks the fee payer as sender and the first other account
// that is neither the mint nor a token program as recipient.
func guessParties(tx *TransactionRecord, mint string) (sender, recipient string) {
	sender = tx.FeePayer()
	for _, key := range tx.AccountKeys {
		if key == mint || isTokenProgram(key) || key == sender {
			continue
		}
		return sender, key
	}
	return sender, ""
}

func isTokenProgram(key string) bool {
	return key == TokenProgramID.String() || key == Token2022ProgramID.String()
}
