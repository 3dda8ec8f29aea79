package marketplace

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// fakeRPC implements ProgramRPC over in-memory accounts.
type fakeRPC struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey][]byte
	programs rpc.GetProgramAccountsResult
	err      error

	lastFilters []rpc.RPCFilter
	sent        []*solana.Transaction
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{accounts: make(map[solana.PublicKey][]byte)}
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)}}, nil
}

func (f *fakeRPC) GetProgramAccounts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if opts != nil {
		f.lastFilters = opts.Filters
	}
	return f.programs, nil
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{7}}}, nil
}

func (f *fakeRPC) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeRPC) addListing(addr, seller, mint solana.PublicKey, price uint64, active bool) {
	data := listingData(seller, mint, price, active)
	f.accounts[addr] = data
	f.programs = append(f.programs, &rpc.KeyedAccount{
		Pubkey:  addr,
		Account: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)},
	})
}

func listingData(seller, mint solana.PublicKey, price uint64, active bool) []byte {
	buf := append([]byte{}, listingDiscriminator[:]...)
	buf = append(buf, seller[:]...)
	buf = append(buf, mint[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, price)
	if active {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return append(buf, 254)
}

func marketplaceData(authority solana.PublicKey, fee uint16) []byte {
	buf := append([]byte{}, marketplaceDiscriminator[:]...)
	buf = append(buf, authority[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, fee)
	return append(buf, 255)
}

// metadataData lays out a token metadata account the way the metadata
// program stores it, including the fixed-width padding.
func metadataData(mint solana.PublicKey, name, uri string, creators ...solana.PublicKey) []byte {
	padded := func(s string, width int) []byte {
		b := make([]byte, width)
		copy(b, s)
		out := binary.LittleEndian.AppendUint32(nil, uint32(width))
		return append(out, b...)
	}

	buf := []byte{4}
	buf = append(buf, make([]byte, 32)...) // update authority
	buf = append(buf, mint[:]...)
	buf = append(buf, padded(name, 32)...)
	buf = append(buf, padded("CAT", 10)...)
	buf = append(buf, padded(uri, 200)...)
	buf = binary.LittleEndian.AppendUint16(buf, 500)
	if len(creators) == 0 {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(creators)))
	for _, c := range creators {
		buf = append(buf, c[:]...)
		buf = append(buf, 1, 100)
	}
	return buf
}
