package solana

import (
	"context"
	"time"

	"github.com/brojonat/nftmarket/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// RPCAdapter wraps the solana-go RPC client behind a client-side rate limit.
// It satisfies RPCClient and the wider interface the marketplace program
// client needs (program accounts, blockhash, send).
//
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
type RPCAdapter struct {
	client   *rpc.Client
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	endpoint string
}

// NewRPCClient creates an adapter for rpcURL allowing rps requests per second.
// rps <= 0 disables the limiter.
func NewRPCClient(rpcURL string, rps int, m *metrics.Metrics) *RPCAdapter {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = rps
	}
	return &RPCAdapter{
		client:   rpc.New(rpcURL),
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  m,
		endpoint: EndpointLabel(rpcURL),
	}
}

// wait blocks until the limiter admits one request or ctx is done.
func (r *RPCAdapter) wait(ctx context.Context) error {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.RecordRateLimitWait(r.endpoint, time.Since(start).Seconds())
	}
	return nil
}

func (r *RPCAdapter) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
}

func (r *RPCAdapter) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.client.GetTransaction(ctx, signature, opts)
}

func (r *RPCAdapter) GetProgramAccounts(
	ctx context.Context,
	program solana.PublicKey,
	opts *rpc.GetProgramAccountsOpts,
) (rpc.GetProgramAccountsResult, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.client.GetProgramAccountsWithOpts(ctx, program, opts)
}

func (r *RPCAdapter) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.client.GetAccountInfo(ctx, account)
}

func (r *RPCAdapter) GetLatestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
}

func (r *RPCAdapter) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := r.wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	return r.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

// Endpoint returns the metrics label of the wrapped endpoint.
func (r *RPCAdapter) Endpoint() string {
	return r.endpoint
}
