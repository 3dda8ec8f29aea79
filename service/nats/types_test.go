package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/nftmarket/service/market"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromActivity(t *testing.T) {
	price := decimal.RequireFromString("1.25")
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	event := FromActivity(market.Activity{
		ID: "5sigSale", Kind: chain.KindSale, Actor: "buyer", Target: "seller",
		NFTMint: "mintA", NFTName: "Cat #1", Price: &price, Timestamp: ts,
		Signature: "5sigSaleAAAA",
	})

	assert.Equal(t, "5sigSaleAAAA", event.Signature)
	assert.Equal(t, "sale", event.Kind)
	assert.Equal(t, "activity.sale", event.Subject())
	assert.Equal(t, "mintA", event.Mint)
	assert.Equal(t, ts, event.BlockTime)
	assert.WithinDuration(t, time.Now(), event.PublishedAt, 5*time.Second)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":"1.25"`)
	assert.Contains(t, string(data), `"kind":"sale"`)
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	pub := NewMockPublisher()

	events := []*ActivityEvent{
		{Signature: "a", Kind: "sale"},
		{Signature: "b", Kind: "list"},
		{Signature: "a", Kind: "sale"},
	}

	n, err := pub.PublishActivityBatch(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, pub.GetPublishedEvents(), 2, "duplicate signature is recorded once")
	assert.Len(t, pub.GetPublishedEventsForKind("sale"), 1)

	pub.SetPublishError(errors.New("nats down"))
	n, err = pub.PublishActivityBatch(ctx, []*ActivityEvent{{Signature: "c", Kind: "mint"}})
	assert.Error(t, err)
	assert.Zero(t, n)

	require.NoError(t, pub.Close())
	assert.True(t, pub.IsClosed())
}
