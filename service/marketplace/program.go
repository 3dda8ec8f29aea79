package marketplace

import (
	"crypto/sha256"
	"fmt"

	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the devnet deployment of the marketplace program.
const DefaultProgramID = "4hVp7QQKuowuf1SgPVXcD5YkTrHHiDRPbn4V9HKvYwrT"

// PDA seeds used by the program.
var (
	marketplaceSeed = []byte("marketplace")
	listingSeed     = []byte("listing")
	metadataSeed    = []byte("metadata")
)

// Anchor discriminators, derived once.
var (
	listingDiscriminator     = accountDiscriminator("NFTListing")
	marketplaceDiscriminator = accountDiscriminator("Marketplace")

	ixInitializeMarketplace = instructionDiscriminator("initialize_marketplace")
	ixListNFT               = instructionDiscriminator("list_nft")
	ixUpdateListing         = instructionDiscriminator("update_listing")
	ixBuyNFT                = instructionDiscriminator("buy_nft")
	ixCancelListing         = instructionDiscriminator("cancel_listing")
)

func accountDiscriminator(name string) [8]byte {
	return sighash("account:" + name)
}

func instructionDiscriminator(name string) [8]byte {
	return sighash("global:" + name)
}

func sighash(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// MarketplaceAddress derives the singleton marketplace PDA.
func MarketplaceAddress(programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{marketplaceSeed}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive marketplace address: %w", err)
	}
	return addr, nil
}

// ListingAddress derives the listing PDA of (mint, seller).
func ListingAddress(programID, mint, seller solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{listingSeed, mint[:], seller[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive listing address: %w", err)
	}
	return addr, nil
}

// MetadataAddress derives the token metadata account of mint.
func MetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	metadataProgram := chain.TokenMetadataProgramID
	addr, _, err := solana.FindProgramAddress([][]byte{metadataSeed, metadataProgram[:], mint[:]}, metadataProgram)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata address: %w", err)
	}
	return addr, nil
}

// AssociatedTokenAddress returns the associated token account of owner for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token account: %w", err)
	}
	return ata, nil
}
