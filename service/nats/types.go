package nats

import (
	"time"

	"github.com/brojonat/nftmarket/service/market"
	"github.com/shopspring/decimal"
)

// ActivityEvent is a classified marketplace activity published to NATS.
// It is published to the subject "activity.{kind}" in JetStream.
type ActivityEvent struct {
	Signature string           `json:"signature"`
	Kind      string           `json:"kind"`
	Actor     string           `json:"actor"`
	Target    string           `json:"target,omitempty"`
	Mint      string           `json:"mint,omitempty"`
	NFTName   string           `json:"nft_name,omitempty"`
	NFTImage  string           `json:"nft_image,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"` // SOL
	BlockTime time.Time        `json:"block_time"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject of the event.
func (e *ActivityEvent) Subject() string {
	return SubjectPrefix + e.Kind
}

// FromActivity converts a feed activity to an event for publishing.
func FromActivity(a market.Activity) *ActivityEvent {
	return &ActivityEvent{
		Signature:   a.Signature,
		Kind:        string(a.Kind),
		Actor:       a.Actor,
		Target:      a.Target,
		Mint:        a.NFTMint,
		NFTName:     a.NFTName,
		NFTImage:    a.NFTImage,
		Price:       a.Price,
		BlockTime:   a.Timestamp,
		PublishedAt: time.Now().UTC(),
	}
}
