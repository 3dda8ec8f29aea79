package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/marketplace"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMint   = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testSeller = "9xQFeg4cCJBLdP1LfJ1GgJQBBLKR5zLxbMPXPUKPQTZi"
)

type fakeAggregator struct {
	activities  []market.Activity
	status      market.Status
	gotNFTs     []marketplace.ListedNFT
	gotLimit    int
	transfers   []market.TransferRecord
	transferErr error
	stats       market.Stats
	statsStatus market.Status
}

func (f *fakeAggregator) RecentActivities(ctx context.Context, nfts []marketplace.ListedNFT, limit int) ([]market.Activity, market.Status) {
	f.gotNFTs = nfts
	f.gotLimit = limit
	return f.activities, f.status
}

func (f *fakeAggregator) TransferHistory(ctx context.Context, mint string) ([]market.TransferRecord, market.Status, error) {
	if f.transferErr != nil {
		return nil, market.Status{}, f.transferErr
	}
	return f.transfers, market.Status{Source: market.SourceChain}, nil
}

func (f *fakeAggregator) MarketStats(ctx context.Context) (market.Stats, market.Status) {
	return f.stats, f.statsStatus
}

type fakeListings struct {
	nfts []marketplace.ListedNFT
	err  error
}

func (f *fakeListings) FetchAllActiveListings(ctx context.Context) ([]marketplace.ListedNFT, error) {
	return f.nfts, f.err
}

func (f *fakeListings) ActiveListingByMint(ctx context.Context, mint solana.PublicKey) (*marketplace.ListedNFT, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.nfts {
		if f.nfts[i].Mint == mint.String() {
			return &f.nfts[i], nil
		}
	}
	return nil, marketplace.ErrListingNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(agg MarketAggregator, listings ListingService) http.Handler {
	cfg := &config.Config{ServerAddr: ":0", ActivityLimit: 5}
	return New(cfg, agg, listings, nil, nil, testLogger()).Handler()
}

func sampleListings() []marketplace.ListedNFT {
	return []marketplace.ListedNFT{
		{ID: "listing1", Mint: testMint, Seller: testSeller, Price: decimal.RequireFromString("1.5"), Active: true, Name: "Cat #1"},
	}
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := map[string]json.RawMessage{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func decodeStatus(t *testing.T, raw json.RawMessage) market.Status {
	t.Helper()
	var status market.Status
	require.NoError(t, json.Unmarshal(raw, &status))
	return status
}

func TestHandleActivities(t *testing.T) {
	price := decimal.RequireFromString("2")
	feed := []market.Activity{{
		ID: "5sigSale", Kind: chain.KindSale, Actor: "buyer", NFTName: "Cat #1",
		Price: &price, TimeAgo: "5m ago", Timestamp: time.Now(), Signature: "5sigSaleAAAA",
	}}

	t.Run("uses active listings and default limit", func(t *testing.T) {
		agg := &fakeAggregator{activities: feed, status: market.Status{Source: market.SourceChain}}
		h := newTestServer(agg, &fakeListings{nfts: sampleListings()})

		rec, body := get(t, h, "/api/v1/activities")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, agg.gotLimit)
		assert.Len(t, agg.gotNFTs, 1)
		assert.Equal(t, market.SourceChain, decodeStatus(t, body["status"]).Source)

		var acts []map[string]interface{}
		require.NoError(t, json.Unmarshal(body["activities"], &acts))
		require.Len(t, acts, 1)
		assert.Equal(t, "sale", acts[0]["type"])
		assert.Equal(t, "2", acts[0]["price"])
		assert.Equal(t, "Cat #1 sold", acts[0]["description"])
		assert.Equal(t, "2 SOL • 5m ago", acts[0]["details"])
		assert.NotEmpty(t, acts[0]["icon"])
	})

	t.Run("explicit limit", func(t *testing.T) {
		agg := &fakeAggregator{activities: feed, status: market.Status{Source: market.SourceChain}}
		h := newTestServer(agg, &fakeListings{nfts: sampleListings()})

		rec, _ := get(t, h, "/api/v1/activities?limit=20")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 20, agg.gotLimit)
	})

	t.Run("listing failure is reported in status", func(t *testing.T) {
		agg := &fakeAggregator{
			activities: market.DefaultActivities(time.Now()),
			status:     market.Status{Source: market.SourceDefault},
		}
		h := newTestServer(agg, &fakeListings{err: errors.New("rpc down")})

		rec, body := get(t, h, "/api/v1/activities")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, agg.gotNFTs)
		status := decodeStatus(t, body["status"])
		assert.Equal(t, market.SourceDefault, status.Source)
		assert.Contains(t, status.Reason, "rpc down")
	})

	for _, limit := range []string{"0", "21", "abc", "-1"} {
		t.Run("rejects limit "+limit, func(t *testing.T) {
			h := newTestServer(&fakeAggregator{}, &fakeListings{})
			rec, body := get(t, h, "/api/v1/activities?limit="+limit)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, string(body["error"]), "limit")
		})
	}
}

func TestHandleTransfers(t *testing.T) {
	t.Run("returns transfers with status", func(t *testing.T) {
		agg := &fakeAggregator{transfers: []market.TransferRecord{{
			Signature: "sig1", Sender: "a", Recipient: "b", Success: true, Type: chain.TransferTypeTransfer,
		}}}
		h := newTestServer(agg, &fakeListings{})

		rec, body := get(t, h, "/api/v1/mints/"+testMint+"/transfers")

		require.Equal(t, http.StatusOK, rec.Code)
		var transfers []market.TransferRecord
		require.NoError(t, json.Unmarshal(body["transfers"], &transfers))
		require.Len(t, transfers, 1)
		assert.Equal(t, "sig1", transfers[0].Signature)
		assert.Equal(t, market.SourceChain, decodeStatus(t, body["status"]).Source)
	})

	t.Run("invalid characters are rejected", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{})
		rec, _ := get(t, h, "/api/v1/mints/not0valid/transfers")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("aggregator validation error maps to 400", func(t *testing.T) {
		agg := &fakeAggregator{transferErr: market.ErrInvalidMint}
		h := newTestServer(agg, &fakeListings{})
		rec, _ := get(t, h, "/api/v1/mints/abc/transfers")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unexpected error maps to 500", func(t *testing.T) {
		agg := &fakeAggregator{transferErr: errors.New("boom")}
		h := newTestServer(agg, &fakeListings{})
		rec, _ := get(t, h, "/api/v1/mints/"+testMint+"/transfers")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleTopSellers(t *testing.T) {
	t.Run("ranks loaded listings", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{nfts: sampleListings()})

		rec, body := get(t, h, "/api/v1/sellers/top")

		require.Equal(t, http.StatusOK, rec.Code)
		var sellers []market.SellerSummary
		require.NoError(t, json.Unmarshal(body["sellers"], &sellers))
		require.Len(t, sellers, 1)
		assert.Equal(t, testSeller, sellers[0].Address)
		assert.Equal(t, 1, sellers[0].ListedNFTs)
	})

	t.Run("falls back to defaults", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{err: errors.New("rpc down")})

		_, body := get(t, h, "/api/v1/sellers/top")

		var sellers []market.SellerSummary
		require.NoError(t, json.Unmarshal(body["sellers"], &sellers))
		assert.Equal(t, market.DefaultSellers(), sellers)
		status := decodeStatus(t, body["status"])
		assert.True(t, status.Degraded())
	})
}

func TestHandleStats(t *testing.T) {
	agg := &fakeAggregator{
		stats: market.Stats{
			TotalVolume:   decimal.RequireFromString("10.5"),
			TotalSales:    3,
			TotalCreators: 2,
			AvgPrice:      decimal.RequireFromString("3.5"),
		},
		statsStatus: market.Status{Source: market.SourceChain},
	}
	h := newTestServer(agg, &fakeListings{})

	rec, body := get(t, h, "/api/v1/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(body["stats"], &stats))
	assert.Equal(t, "10.5", stats["total_volume"])
	assert.Equal(t, float64(3), stats["total_sales"])
	assert.Equal(t, "3.5", stats["avg_price"])
}

func TestHandleListings(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{nfts: sampleListings()})
		rec, body := get(t, h, "/api/v1/listings")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "1", string(body["count"]))
	})

	t.Run("list failure", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{err: errors.New("rpc down")})
		rec, _ := get(t, h, "/api/v1/listings")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("get by mint", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{nfts: sampleListings()})
		rec, body := get(t, h, "/api/v1/listings/"+testMint)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `"`+testSeller+`"`, string(body["seller"]))
	})

	t.Run("unknown mint is 404", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{nfts: sampleListings()})
		rec, _ := get(t, h, "/api/v1/listings/"+testSeller)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("base58 that is not a key is 400", func(t *testing.T) {
		h := newTestServer(&fakeAggregator{}, &fakeListings{})
		rec, _ := get(t, h, "/api/v1/listings/abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthAndCORS(t *testing.T) {
	h := newTestServer(&fakeAggregator{}, &fakeListings{})

	rec, _ := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stats", nil)
	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)

	rec, _ = get(t, h, "/api/v1/stream/activity")
	assert.Equal(t, http.StatusNotFound, rec.Code, "stream is disabled without NATS")
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "valid", address: testMint},
		{name: "empty", address: "", wantErr: true},
		{name: "too long", address: strings.Repeat("A", 101), wantErr: true},
		{name: "control character", address: "abc\x00def", wantErr: true},
		{name: "sql pattern", address: "abc;drop", wantErr: true},
		{name: "non base58", address: "0OIl", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddress(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStreamSubject(t *testing.T) {
	subject, err := streamSubject("")
	require.NoError(t, err)
	assert.Equal(t, "activity.>", subject)

	subject, err = streamSubject("sale")
	require.NoError(t, err)
	assert.Equal(t, "activity.sale", subject)

	_, err = streamSubject("unknown")
	assert.Error(t, err)
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	writeSSE(&buf, "activity", []byte(`{"kind":"sale"}`))
	assert.Equal(t, "event: activity\ndata: {\"kind\":\"sale\"}\n\n", buf.String())
}
