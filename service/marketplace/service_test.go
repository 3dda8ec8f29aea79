package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(f *fakeRPC) *Service {
	return NewService(f, testProgram, nil, nil, nil)
}

func TestFetchAllActiveListings(t *testing.T) {
	ctx := context.Background()
	f := newFakeRPC()
	f.addListing(solana.PublicKey{1}, testSeller, testMint, 1_500_000_000, true)
	f.addListing(solana.PublicKey{2}, testBuyer, solana.PublicKey{9}, 3_000_000_000, false)
	f.addListing(solana.PublicKey{3}, testBuyer, solana.PublicKey{8}, 250_000_000, true)

	nfts, err := newTestService(f).FetchAllActiveListings(ctx)

	require.NoError(t, err)
	require.Len(t, nfts, 2)
	assert.Equal(t, solana.PublicKey{1}.String(), nfts[0].ID)
	assert.Equal(t, testMint.String(), nfts[0].Mint)
	assert.Equal(t, testSeller.String(), nfts[0].Seller)
	assert.True(t, decimal.RequireFromString("1.5").Equal(nfts[0].Price))
	assert.Equal(t, "NFT 7xKXtg", nfts[0].Name)
	assert.Equal(t, "0.25", nfts[1].Price.String())

	require.Len(t, f.lastFilters, 1)
	assert.Equal(t, uint64(0), f.lastFilters[0].Memcmp.Offset)
}

func TestFetchAllListings_RPCError(t *testing.T) {
	f := newFakeRPC()
	f.err = errors.New("node unavailable")

	_, err := newTestService(f).FetchAllListings(context.Background())
	assert.Error(t, err)
}

func TestActiveListingByMint(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by mint offset", func(t *testing.T) {
		f := newFakeRPC()
		f.addListing(solana.PublicKey{1}, testSeller, testMint, 1_000_000_000, true)

		nft, err := newTestService(f).ActiveListingByMint(ctx, testMint)

		require.NoError(t, err)
		assert.Equal(t, testMint.String(), nft.Mint)
		require.Len(t, f.lastFilters, 2)
		assert.Equal(t, uint64(listingMintOffset), f.lastFilters[1].Memcmp.Offset)
	})

	t.Run("inactive only is not found", func(t *testing.T) {
		f := newFakeRPC()
		f.addListing(solana.PublicKey{1}, testSeller, testMint, 1_000_000_000, false)

		_, err := newTestService(f).ActiveListingByMint(ctx, testMint)
		assert.ErrorIs(t, err, ErrListingNotFound)
	})
}

func TestFetchListing_NotFound(t *testing.T) {
	_, err := newTestService(newFakeRPC()).FetchListing(context.Background(), solana.PublicKey{5})
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListNFT(t *testing.T) {
	ctx := context.Background()
	wallet := solana.NewWallet()
	seller := wallet.PublicKey()

	t.Run("creates a new listing", func(t *testing.T) {
		f := newFakeRPC()

		sig, err := newTestService(f).ListNFT(ctx, wallet.PrivateKey, testMint, decimal.RequireFromString("1.25"))

		require.NoError(t, err)
		require.Len(t, f.sent, 1)
		tx := f.sent[0]
		assert.Equal(t, sig, tx.Signatures[0])
		assert.Equal(t, solana.Hash{7}, tx.Message.RecentBlockhash)
		require.Len(t, tx.Message.Instructions, 1)
		assert.Equal(t, ixListNFT[:], []byte(tx.Message.Instructions[0].Data[:8]))
	})

	t.Run("updates an existing listing", func(t *testing.T) {
		f := newFakeRPC()
		addr, err := ListingAddress(testProgram, testMint, seller)
		require.NoError(t, err)
		f.addListing(addr, seller, testMint, 1_000_000_000, false)

		_, err = newTestService(f).ListNFT(ctx, wallet.PrivateKey, testMint, decimal.NewFromInt(2))

		require.NoError(t, err)
		require.Len(t, f.sent, 1)
		assert.Equal(t, ixUpdateListing[:], []byte(f.sent[0].Message.Instructions[0].Data[:8]))
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		f := newFakeRPC()
		_, err := newTestService(f).ListNFT(ctx, wallet.PrivateKey, testMint, decimal.Zero)
		assert.Error(t, err)
		assert.Empty(t, f.sent)
	})
}

func TestBuyNFT(t *testing.T) {
	ctx := context.Background()
	buyer := solana.NewWallet()

	t.Run("creates token account then buys", func(t *testing.T) {
		f := newFakeRPC()
		listingAddr := solana.PublicKey{4}
		f.addListing(listingAddr, testSeller, testMint, 1_000_000_000, true)
		mpAddr, err := MarketplaceAddress(testProgram)
		require.NoError(t, err)
		f.accounts[mpAddr] = marketplaceData(testSeller, 250)

		_, err = newTestService(f).BuyNFT(ctx, buyer.PrivateKey, listingAddr)

		require.NoError(t, err)
		require.Len(t, f.sent, 1)
		ixs := f.sent[0].Message.Instructions
		require.Len(t, ixs, 2)
		assert.Equal(t, []byte{createIdempotent}, []byte(ixs[0].Data))
		assert.Equal(t, ixBuyNFT[:], []byte(ixs[1].Data))
	})

	t.Run("inactive listing", func(t *testing.T) {
		f := newFakeRPC()
		listingAddr := solana.PublicKey{4}
		f.addListing(listingAddr, testSeller, testMint, 1_000_000_000, false)

		_, err := newTestService(f).BuyNFT(ctx, buyer.PrivateKey, listingAddr)
		assert.ErrorIs(t, err, ErrListingNotFound)
	})

	t.Run("uninitialized marketplace", func(t *testing.T) {
		f := newFakeRPC()
		listingAddr := solana.PublicKey{4}
		f.addListing(listingAddr, testSeller, testMint, 1_000_000_000, true)

		_, err := newTestService(f).BuyNFT(ctx, buyer.PrivateKey, listingAddr)
		assert.ErrorIs(t, err, ErrMarketplaceNotFound)
	})
}

func TestInitializeMarketplace_RejectsFee(t *testing.T) {
	_, err := newTestService(newFakeRPC()).InitializeMarketplace(context.Background(), solana.NewWallet().PrivateKey, 10_001)
	assert.Error(t, err)
}

func TestPriceLamports(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		want    uint64
		wantErr string
	}{
		{name: "whole SOL", price: "1.5", want: 1_500_000_000},
		{name: "max u64", price: "18446744073.709551615", want: 18_446_744_073_709_551_615},
		{name: "zero", price: "0", wantErr: "must be positive"},
		{name: "negative", price: "-2", wantErr: "must be positive"},
		{name: "sub lamport", price: "0.0000000001", wantErr: "below one lamport"},
		{name: "above u64", price: "20000000000", wantErr: "exceeds the maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := priceLamports(decimal.RequireFromString(tt.price))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
