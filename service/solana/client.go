package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/nftmarket/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client fetches signatures and normalized transactions.
// It wraps the RPC client with domain-specific operations. Failed calls are
// not retried; callers treat them as absent data.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
}

// NewClient creates a new Solana client.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// Signatures returns up to limit most-recent signatures for address,
// newest first.
func (c *Client) Signatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}

	start := time.Now()
	sigs, err := c.rpc.GetSignaturesForAddress(ctx, pubkey, opts)
	c.recordCall("GetSignaturesForAddress", start, err)
	if err != nil {
		c.logger.DebugContext(ctx, "failed to get signatures",
			"address", address,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get signatures for %s: %w", address, err)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(sigs)))
	}

	out := make([]SignatureInfo, 0, len(sigs))
	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		out = append(out, signatureToDomain(sig))
	}

	c.logger.DebugContext(ctx, "fetched signatures",
		"address", address,
		"limit", limit,
		"count", len(out),
	)
	return out, nil
}

// Transaction fetches and normalizes one transaction at confirmed commitment,
// accepting legacy and version 0 transactions. It returns nil, nil when the
// node does not know the signature.
func (c *Client) Transaction(ctx context.Context, signature string) (*TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	if errors.Is(err, rpc.ErrNotFound) {
		c.recordCall("GetTransaction", start, nil)
		return nil, nil
	}
	c.recordCall("GetTransaction", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", signature, err)
	}

	rec, err := recordFromResult(signature, result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction %s: %w", signature, err)
	}
	return rec, nil
}

func (c *Client) recordCall(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}
