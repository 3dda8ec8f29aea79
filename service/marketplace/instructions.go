package marketplace

import (
	"bytes"
	"fmt"

	chain "github.com/brojonat/nftmarket/service/solana"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// createIdempotent is the associated token program instruction index that
// succeeds when the account already exists.
const createIdempotent = 1

type feeArgs struct {
	Fee uint16
}

type priceArgs struct {
	Price uint64
}

// instructionData prefixes the Borsh-encoded args with the discriminator.
func instructionData(disc [8]byte, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("failed to encode instruction args: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Builder assembles program instructions for one deployment.
type Builder struct {
	ProgramID solana.PublicKey
}

// InitializeMarketplace creates the marketplace PDA with a fee in basis points.
func (b Builder) InitializeMarketplace(authority solana.PublicKey, feeBps uint16) (solana.Instruction, error) {
	marketplace, err := MarketplaceAddress(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(ixInitializeMarketplace, feeArgs{Fee: feeBps})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(marketplace).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(chain.SystemProgramID),
	}, data), nil
}

// ListNFT creates the listing PDA for (mint, seller) at price lamports.
func (b Builder) ListNFT(seller, mint solana.PublicKey, price uint64) (solana.Instruction, error) {
	marketplace, err := MarketplaceAddress(b.ProgramID)
	if err != nil {
		return nil, err
	}
	listing, err := ListingAddress(b.ProgramID, mint, seller)
	if err != nil {
		return nil, err
	}
	tokenAccount, err := AssociatedTokenAddress(seller, mint)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(ixListNFT, priceArgs{Price: price})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(listing).WRITE(),
		solana.Meta(marketplace),
		solana.Meta(seller).WRITE().SIGNER(),
		solana.Meta(mint),
		solana.Meta(tokenAccount).WRITE(),
		solana.Meta(chain.TokenProgramID),
		solana.Meta(chain.SystemProgramID),
	}, data), nil
}

// UpdateListing reprices and reactivates an existing listing.
func (b Builder) UpdateListing(seller, mint solana.PublicKey, price uint64) (solana.Instruction, error) {
	listing, err := ListingAddress(b.ProgramID, mint, seller)
	if err != nil {
		return nil, err
	}
	tokenAccount, err := AssociatedTokenAddress(seller, mint)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(ixUpdateListing, priceArgs{Price: price})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(listing).WRITE(),
		solana.Meta(seller).WRITE().SIGNER(),
		solana.Meta(tokenAccount).WRITE(),
		solana.Meta(chain.TokenProgramID),
		solana.Meta(chain.SystemProgramID),
	}, data), nil
}

// BuyNFT pays the seller and the marketplace authority and moves the NFT
// to the buyer's associated token account, which must already exist.
func (b Builder) BuyNFT(buyer, listingAddr solana.PublicKey, listing Listing, authority solana.PublicKey) (solana.Instruction, error) {
	marketplace, err := MarketplaceAddress(b.ProgramID)
	if err != nil {
		return nil, err
	}
	sellerToken, err := AssociatedTokenAddress(listing.Seller, listing.NFTMint)
	if err != nil {
		return nil, err
	}
	buyerToken, err := AssociatedTokenAddress(buyer, listing.NFTMint)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(ixBuyNFT, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(marketplace),
		solana.Meta(listingAddr).WRITE(),
		solana.Meta(buyer).WRITE().SIGNER(),
		solana.Meta(listing.Seller).WRITE(),
		solana.Meta(authority).WRITE(),
		solana.Meta(sellerToken).WRITE(),
		solana.Meta(buyerToken).WRITE(),
		solana.Meta(chain.TokenProgramID),
		solana.Meta(chain.AssociatedTokenProgramID),
		solana.Meta(chain.SystemProgramID),
	}, data), nil
}

// CancelListing deactivates the listing of (mint, seller) and revokes the delegate.
func (b Builder) CancelListing(seller, mint solana.PublicKey) (solana.Instruction, error) {
	listing, err := ListingAddress(b.ProgramID, mint, seller)
	if err != nil {
		return nil, err
	}
	tokenAccount, err := AssociatedTokenAddress(seller, mint)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(ixCancelListing, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(listing).WRITE(),
		solana.Meta(seller).WRITE().SIGNER(),
		solana.Meta(tokenAccount).WRITE(),
		solana.Meta(chain.TokenProgramID),
		solana.Meta(chain.SystemProgramID),
	}, data), nil
}

// CreateTokenAccountIdempotent creates owner's associated token account for
// mint, paid by payer, and is a no-op when it already exists.
func CreateTokenAccountIdempotent(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(chain.AssociatedTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(chain.SystemProgramID),
		solana.Meta(chain.TokenProgramID),
	}, []byte{createIdempotent}), nil
}
