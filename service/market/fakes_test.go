package market

import (
	"context"
	"errors"
	"sync"

	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/solana"
)

var errRPC = errors.New("rpc unavailable")

// fakeChain implements ChainReader from fixed maps.
type fakeChain struct {
	signatures   map[string][]solana.SignatureInfo
	transactions map[string]*solana.TransactionRecord
	sigErrs      map[string]error
	txErrs       map[string]error

	mu        sync.Mutex
	sigCalls  []string
	sigLimits []int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		signatures:   make(map[string][]solana.SignatureInfo),
		transactions: make(map[string]*solana.TransactionRecord),
		sigErrs:      make(map[string]error),
		txErrs:       make(map[string]error),
	}
}

func (f *fakeChain) Signatures(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error) {
	f.mu.Lock()
	f.sigCalls = append(f.sigCalls, address)
	f.sigLimits = append(f.sigLimits, limit)
	f.mu.Unlock()

	if err := f.sigErrs[address]; err != nil {
		return nil, err
	}
	sigs := f.signatures[address]
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}
	return sigs, nil
}

func (f *fakeChain) Transaction(ctx context.Context, signature string) (*solana.TransactionRecord, error) {
	if err := f.txErrs[signature]; err != nil {
		return nil, err
	}
	return f.transactions[signature], nil
}

// add registers a transaction under mint with the given block time.
func (f *fakeChain) add(mint string, tx *solana.TransactionRecord, blockTime *int64) {
	tx.BlockTime = blockTime
	f.signatures[mint] = append(f.signatures[mint], solana.SignatureInfo{Signature: tx.Signature, BlockTime: blockTime})
	f.transactions[tx.Signature] = tx
}

// fakeListings implements ListingSource.
type fakeListings struct {
	nfts []marketplace.ListedNFT
	err  error
}

func (f *fakeListings) FetchAllActiveListings(ctx context.Context) ([]marketplace.ListedNFT, error) {
	return f.nfts, f.err
}

func bt(v int64) *int64 {
	return &v
}
