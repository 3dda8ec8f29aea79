package marketplace

import (
	"encoding/binary"
	"testing"

	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testProgram = solana.MustPublicKeyFromBase58(DefaultProgramID)
	testSeller  = solana.MustPublicKeyFromBase58("EH32h76T5Ram1BwgJeNQvmJTUX1pzAsk6SACjNUfcTq7")
	testBuyer   = solana.MustPublicKeyFromBase58("GnBksP15L4zVNdj5SXGm3DyghAtBv2yRQnS93jNrJ3Sg")
	testMint    = solana.MustPublicKeyFromBase58("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
)

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, [8]byte{88, 221, 93, 166, 63, 220, 106, 232}, ixListNFT)
	assert.Equal(t, [8]byte{96, 0, 28, 190, 49, 107, 83, 222}, ixBuyNFT)
	assert.Equal(t, [8]byte{35, 98, 212, 46, 196, 243, 199, 114}, listingDiscriminator)
}

func TestProgramAddresses(t *testing.T) {
	mp1, err := MarketplaceAddress(testProgram)
	require.NoError(t, err)
	mp2, err := MarketplaceAddress(testProgram)
	require.NoError(t, err)
	assert.Equal(t, mp1, mp2)
	assert.False(t, mp1.IsOnCurve())

	bySeller, err := ListingAddress(testProgram, testMint, testSeller)
	require.NoError(t, err)
	byBuyer, err := ListingAddress(testProgram, testMint, testBuyer)
	require.NoError(t, err)
	assert.NotEqual(t, bySeller, byBuyer, "listing address depends on the seller")
	assert.NotEqual(t, mp1, bySeller)

	md, err := MetadataAddress(testMint)
	require.NoError(t, err)
	assert.False(t, md.IsZero())
}

func TestDecodeAccounts(t *testing.T) {
	t.Run("listing", func(t *testing.T) {
		l, err := decodeListing(listingData(testSeller, testMint, 2_500_000_000, true))
		require.NoError(t, err)
		assert.Equal(t, testSeller, l.Seller)
		assert.Equal(t, testMint, l.NFTMint)
		assert.Equal(t, uint64(2_500_000_000), l.Price)
		assert.True(t, l.Active)
		assert.Equal(t, uint8(254), l.Bump)
		assert.Equal(t, "2.5", l.PriceSOL().String())
	})

	t.Run("marketplace", func(t *testing.T) {
		m, err := decodeMarketplace(marketplaceData(testSeller, 250))
		require.NoError(t, err)
		assert.Equal(t, testSeller, m.Authority)
		assert.Equal(t, uint16(250), m.Fee)
	})

	t.Run("wrong discriminator", func(t *testing.T) {
		_, err := decodeListing(marketplaceData(testSeller, 250))
		assert.ErrorIs(t, err, errDiscriminator)
	})

	t.Run("short data", func(t *testing.T) {
		_, err := decodeListing([]byte{1, 2})
		assert.Error(t, err)
	})
}

func TestBuilder(t *testing.T) {
	b := Builder{ProgramID: testProgram}

	t.Run("list encodes price", func(t *testing.T) {
		ix, err := b.ListNFT(testSeller, testMint, 1_500_000_000)
		require.NoError(t, err)

		assert.Equal(t, testProgram, ix.ProgramID())
		data, err := ix.Data()
		require.NoError(t, err)
		require.Len(t, data, 16)
		assert.Equal(t, ixListNFT[:], data[:8])
		assert.Equal(t, uint64(1_500_000_000), binary.LittleEndian.Uint64(data[8:]))

		accounts := ix.Accounts()
		require.Len(t, accounts, 7)
		assert.Equal(t, testSeller, accounts[2].PublicKey)
		assert.True(t, accounts[2].IsSigner)
		assert.Equal(t, testMint, accounts[3].PublicKey)
	})

	t.Run("buy wires seller and authority", func(t *testing.T) {
		listingAddr, err := ListingAddress(testProgram, testMint, testSeller)
		require.NoError(t, err)
		listing := Listing{Seller: testSeller, NFTMint: testMint, Price: 1, Active: true}

		ix, err := b.BuyNFT(testBuyer, listingAddr, listing, testSeller)
		require.NoError(t, err)

		data, err := ix.Data()
		require.NoError(t, err)
		assert.Equal(t, ixBuyNFT[:], data)

		accounts := ix.Accounts()
		require.Len(t, accounts, 10)
		assert.Equal(t, listingAddr, accounts[1].PublicKey)
		assert.True(t, accounts[2].IsSigner)
		assert.Equal(t, testSeller, accounts[3].PublicKey)
		assert.Equal(t, chain.AssociatedTokenProgramID, accounts[8].PublicKey)
	})

	t.Run("initialize encodes fee", func(t *testing.T) {
		ix, err := b.InitializeMarketplace(testSeller, 250)
		require.NoError(t, err)
		data, err := ix.Data()
		require.NoError(t, err)
		assert.Equal(t, uint16(250), binary.LittleEndian.Uint16(data[8:]))
	})

	t.Run("idempotent token account", func(t *testing.T) {
		ix, err := CreateTokenAccountIdempotent(testBuyer, testBuyer, testMint)
		require.NoError(t, err)
		data, err := ix.Data()
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, data)
		assert.Equal(t, chain.AssociatedTokenProgramID, ix.ProgramID())
	})
}
