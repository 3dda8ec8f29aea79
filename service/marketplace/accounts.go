package marketplace

import (
	"bytes"
	"errors"
	"fmt"

	chain "github.com/brojonat/nftmarket/service/solana"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var (
	// ErrListingNotFound is returned when a listing account does not exist
	// or no active listing matches the request.
	ErrListingNotFound = errors.New("listing not found")

	// ErrMarketplaceNotFound is returned when the marketplace PDA has not been initialized.
	ErrMarketplaceNotFound = errors.New("marketplace not initialized")

	errDiscriminator = errors.New("account discriminator mismatch")
)

// Listing is the on-chain NFTListing account.
type Listing struct {
	Seller  solana.PublicKey
	NFTMint solana.PublicKey
	Price   uint64 // lamports
	Active  bool
	Bump    uint8
}

// PriceSOL returns the listing price in SOL.
func (l Listing) PriceSOL() decimal.Decimal {
	return chain.LamportsToSOL(l.Price)
}

// Marketplace is the on-chain Marketplace account.
type Marketplace struct {
	Authority solana.PublicKey
	Fee       uint16 // basis points
	Bump      uint8
}

// ListingAccount pairs a decoded listing with its address.
type ListingAccount struct {
	Address solana.PublicKey
	Listing Listing
}

func decodeListing(data []byte) (Listing, error) {
	var l Listing
	if err := decodeAnchorAccount(data, listingDiscriminator, &l); err != nil {
		return Listing{}, fmt.Errorf("failed to decode listing: %w", err)
	}
	return l, nil
}

func decodeMarketplace(data []byte) (Marketplace, error) {
	var m Marketplace
	if err := decodeAnchorAccount(data, marketplaceDiscriminator, &m); err != nil {
		return Marketplace{}, fmt.Errorf("failed to decode marketplace: %w", err)
	}
	return m, nil
}

func decodeAnchorAccount(data []byte, disc [8]byte, v interface{}) error {
	if len(data) < len(disc) || !bytes.Equal(data[:len(disc)], disc[:]) {
		return errDiscriminator
	}
	return bin.NewBorshDecoder(data[len(disc):]).Decode(v)
}
