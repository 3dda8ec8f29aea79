package solana

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL program
	SystemProgramID = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// AssociatedTokenProgramID creates associated token accounts
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	// TokenMetadataProgramID is the Metaplex token metadata program
	TokenMetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// signatureToDomain converts an RPC TransactionSignature to our SignatureInfo.
func signatureToDomain(sig *rpc.TransactionSignature) SignatureInfo {
	info := SignatureInfo{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
	}
	if sig.BlockTime != nil {
		bt := int64(*sig.BlockTime)
		info.BlockTime = &bt
	}
	return info
}

// recordFromResult converts a GetTransactionResult into a TransactionRecord.
// A nil result (unknown or pruned transaction) yields a nil record and no error.
// A result without meta yields a record with no logs or balances, which the
// classifiers treat as non-classifiable.
func recordFromResult(signature string, result *rpc.GetTransactionResult) (*TransactionRecord, error) {
	if result == nil {
		return nil, nil
	}
	if result.Transaction == nil {
		return nil, fmt.Errorf("transaction %s has no body", signature)
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	rec := &TransactionRecord{
		Signature:   signature,
		Slot:        result.Slot,
		AccountKeys: make([]string, 0, len(tx.Message.AccountKeys)),
	}
	if result.BlockTime != nil {
		bt := int64(*result.BlockTime)
		rec.BlockTime = &bt
	}
	for _, key := range tx.Message.AccountKeys {
		rec.AccountKeys = append(rec.AccountKeys, key.String())
	}

	meta := result.Meta
	if meta == nil {
		return rec, nil
	}

	if meta.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", meta.Err)
		rec.Err = &errMsg
	}
	rec.LogMessages = meta.LogMessages
	rec.PreBalances = meta.PreBalances
	rec.PostBalances = meta.PostBalances
	rec.PreTokenBalances = holdingsFromRPC(meta.PreTokenBalances)
	rec.PostTokenBalances = holdingsFromRPC(meta.PostTokenBalances)

	return rec, nil
}

// holdingsFromRPC keeps the nil/empty distinction of the RPC payload.
func holdingsFromRPC(balances []rpc.TokenBalance) []TokenHolding {
	if balances == nil {
		return nil
	}
	out := make([]TokenHolding, 0, len(balances))
	for _, b := range balances {
		h := TokenHolding{Mint: b.Mint.String()}
		if b.Owner != nil {
			h.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			h.Amount = parseAmount(b.UiTokenAmount.Amount)
		}
		out = append(out, h)
	}
	return out
}

// parseAmount parses a raw token amount string; unparsable amounts count as zero.
func parseAmount(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
