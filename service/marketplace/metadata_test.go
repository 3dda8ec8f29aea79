package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataResolver(t *testing.T) {
	ctx := context.Background()
	mdAddr, err := MetadataAddress(testMint)
	require.NoError(t, err)

	t.Run("on-chain and off-chain", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"name": "ignored",
				"description": "A very cool cat",
				"image": "https://gateway.example/ipfs/QmImage",
				"attributes": [{"trait_type": "eyes", "value": "green"}],
				"properties": {"category": "art"}
			}`))
		}))
		defer srv.Close()

		rpcFake := newFakeRPC()
		rpcFake.accounts[mdAddr] = metadataData(testMint, "Cool Cat #1", srv.URL, testSeller)
		r := NewMetadataResolver(rpcFake, time.Second, nil, nil)

		md := r.Resolve(ctx, testMint)

		assert.Equal(t, "Cool Cat #1", md.Name)
		assert.Equal(t, "CAT", md.Symbol)
		assert.Equal(t, "A very cool cat", md.Description)
		assert.Equal(t, "https://gateway.example/ipfs/QmImage", md.Image)
		assert.Equal(t, "art", md.Category)
		require.Len(t, md.Attributes, 1)
		assert.Equal(t, "eyes", md.Attributes[0].TraitType)
		assert.Equal(t, []string{testSeller.String()}, md.Creators)
	})

	t.Run("category from attributes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"attributes": [{"trait_type": "Category", "value": "music"}]}`))
		}))
		defer srv.Close()

		rpcFake := newFakeRPC()
		rpcFake.accounts[mdAddr] = metadataData(testMint, "Song", srv.URL)

		md := NewMetadataResolver(rpcFake, time.Second, nil, nil).Resolve(ctx, testMint)

		assert.Equal(t, "music", md.Category)
		assert.Equal(t, missingDescription, md.Description)
		assert.Empty(t, md.Creators)
	})

	t.Run("off-chain failure keeps on-chain fields", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		rpcFake := newFakeRPC()
		rpcFake.accounts[mdAddr] = metadataData(testMint, "Cool Cat #2", srv.URL, testBuyer)

		md := NewMetadataResolver(rpcFake, time.Second, nil, nil).Resolve(ctx, testMint)

		assert.Equal(t, "Cool Cat #2", md.Name)
		assert.Equal(t, missingDescription, md.Description)
		assert.Equal(t, srv.URL, md.Image)
		assert.Equal(t, defaultCategory, md.Category)
		assert.Equal(t, []string{testBuyer.String()}, md.Creators)
	})

	t.Run("missing account falls back", func(t *testing.T) {
		md := NewMetadataResolver(newFakeRPC(), time.Second, nil, nil).Resolve(ctx, testMint)
		assert.Equal(t, FallbackMetadata(testMint.String()), md)
		assert.Equal(t, "NFT 7xKXtg", md.Name)
		assert.Equal(t, "Metadata unavailable", md.Description)
		assert.Equal(t, "collectible", md.Category)
	})
}
