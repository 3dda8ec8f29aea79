package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/nftmarket/service/metrics"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// enrichConcurrency caps parallel metadata lookups.
const enrichConcurrency = 4

// listingMintOffset is the byte offset of nft_mint inside a listing account.
const listingMintOffset = 8 + 32

// ProgramRPC is the subset of the RPC adapter the program client needs.
type ProgramRPC interface {
	AccountReader
	GetProgramAccounts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	GetLatestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// ListedNFT is an active listing enriched with its metadata.
type ListedNFT struct {
	ID          string          `json:"id"` // listing account address
	Mint        string          `json:"mint"`
	Seller      string          `json:"seller"`
	Price       decimal.Decimal `json:"price"` // SOL
	Active      bool            `json:"active"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Attributes  []Attribute     `json:"attributes"`
	Creators    []string        `json:"creators,omitempty"`
}

// Service reads and writes marketplace program state.
type Service struct {
	rpc       ProgramRPC
	programID solana.PublicKey
	builder   Builder
	metadata  *MetadataResolver
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewService creates a program client. metadata may be nil, in which case
// listings are returned with fallback metadata.
func NewService(rpcClient ProgramRPC, programID solana.PublicKey, metadata *MetadataResolver, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		rpc:       rpcClient,
		programID: programID,
		builder:   Builder{ProgramID: programID},
		metadata:  metadata,
		logger:    logger,
		metrics:   m,
	}
}

// ProgramID returns the program this service talks to.
func (s *Service) ProgramID() solana.PublicKey {
	return s.programID
}

// FetchListing decodes the listing account at address.
func (s *Service) FetchListing(ctx context.Context, address solana.PublicKey) (*Listing, error) {
	res, err := s.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing account: %w", err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, ErrListingNotFound
	}
	listing, err := decodeListing(res.Value.Data.GetBinary())
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// FetchMarketplace decodes the marketplace PDA.
func (s *Service) FetchMarketplace(ctx context.Context) (*Marketplace, error) {
	addr, err := MarketplaceAddress(s.programID)
	if err != nil {
		return nil, err
	}
	res, err := s.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrMarketplaceNotFound
		}
		return nil, fmt.Errorf("failed to get marketplace account: %w", err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, ErrMarketplaceNotFound
	}
	mp, err := decodeMarketplace(res.Value.Data.GetBinary())
	if err != nil {
		return nil, err
	}
	return &mp, nil
}

// FetchAllListings returns every listing account of the program, active or not.
func (s *Service) FetchAllListings(ctx context.Context) ([]ListingAccount, error) {
	return s.programListings(ctx)
}

// FetchAllActiveListings returns active listings enriched with metadata.
func (s *Service) FetchAllActiveListings(ctx context.Context) ([]ListedNFT, error) {
	all, err := s.programListings(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]ListingAccount, 0, len(all))
	for _, acc := range all {
		if acc.Listing.Active {
			active = append(active, acc)
		}
	}
	s.logger.DebugContext(ctx, "loaded listings",
		"total", len(all),
		"active", len(active),
	)
	return s.enrich(ctx, active), nil
}

// ActiveListingByMint returns the active listing of mint, if any.
func (s *Service) ActiveListingByMint(ctx context.Context, mint solana.PublicKey) (*ListedNFT, error) {
	accounts, err := s.programListings(ctx, rpc.RPCFilter{
		Memcmp: &rpc.RPCFilterMemcmp{Offset: listingMintOffset, Bytes: solana.Base58(mint[:])},
	})
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if acc.Listing.Active {
			nfts := s.enrich(ctx, []ListingAccount{acc})
			return &nfts[0], nil
		}
	}
	return nil, ErrListingNotFound
}

func (s *Service) programListings(ctx context.Context, extra ...rpc.RPCFilter) ([]ListingAccount, error) {
	filters := append([]rpc.RPCFilter{{
		Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(listingDiscriminator[:])},
	}}, extra...)

	res, err := s.rpc.GetProgramAccounts(ctx, s.programID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters:    filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get program accounts: %w", err)
	}

	out := make([]ListingAccount, 0, len(res))
	for _, keyed := range res {
		if keyed == nil || keyed.Account == nil || keyed.Account.Data == nil {
			continue
		}
		listing, err := decodeListing(keyed.Account.Data.GetBinary())
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable listing",
				"address", keyed.Pubkey.String(),
				"error", err,
			)
			continue
		}
		out = append(out, ListingAccount{Address: keyed.Pubkey, Listing: listing})
	}
	return out, nil
}

// enrich resolves metadata for each listing; order is preserved.
func (s *Service) enrich(ctx context.Context, accounts []ListingAccount) []ListedNFT {
	out := make([]ListedNFT, len(accounts))

	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i, acc := range accounts {
		i, acc := i, acc
		g.Go(func() error {
			mint := acc.Listing.NFTMint
			md := FallbackMetadata(mint.String())
			if s.metadata != nil {
				md = s.metadata.Resolve(ctx, mint)
			}
			out[i] = ListedNFT{
				ID:          acc.Address.String(),
				Mint:        mint.String(),
				Seller:      acc.Listing.Seller.String(),
				Price:       acc.Listing.PriceSOL(),
				Active:      acc.Listing.Active,
				Name:        md.Name,
				Description: md.Description,
				Image:       md.Image,
				Category:    md.Category,
				Attributes:  md.Attributes,
				Creators:    md.Creators,
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Submit signs instructions with signer, who also pays the fee, and sends them.
func (s *Service) Submit(ctx context.Context, signer solana.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	payer := signer.PublicKey()

	blockhash, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if blockhash == nil || blockhash.Value == nil {
		return solana.Signature{}, errors.New("failed to get latest blockhash: empty response")
	}

	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "transaction sent",
		"signature", sig.String(),
		"payer", payer.String(),
		"instructions", len(instructions),
	)
	return sig, nil
}

// InitializeMarketplace creates the marketplace with signer as authority.
func (s *Service) InitializeMarketplace(ctx context.Context, signer solana.PrivateKey, feeBps uint16) (solana.Signature, error) {
	if feeBps > 10_000 {
		return solana.Signature{}, fmt.Errorf("fee %d exceeds 10000 basis points", feeBps)
	}
	ix, err := s.builder.InitializeMarketplace(signer.PublicKey(), feeBps)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.Submit(ctx, signer, ix)
}

// ListNFT lists mint at price SOL. An existing listing of the same
// (mint, seller) is updated instead.
func (s *Service) ListNFT(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, price decimal.Decimal) (solana.Signature, error) {
	lamports, err := priceLamports(price)
	if err != nil {
		return solana.Signature{}, err
	}
	seller := signer.PublicKey()

	listingAddr, err := ListingAddress(s.programID, mint, seller)
	if err != nil {
		return solana.Signature{}, err
	}
	_, err = s.FetchListing(ctx, listingAddr)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "listing exists, updating price",
			"listing", listingAddr.String(),
			"mint", mint.String(),
		)
		return s.updateListing(ctx, signer, mint, lamports)
	case !errors.Is(err, ErrListingNotFound):
		return solana.Signature{}, err
	}

	ix, err := s.builder.ListNFT(seller, mint, lamports)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.Submit(ctx, signer, ix)
}

// UpdateListing reprices signer's listing of mint.
func (s *Service) UpdateListing(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, price decimal.Decimal) (solana.Signature, error) {
	lamports, err := priceLamports(price)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.updateListing(ctx, signer, mint, lamports)
}

func (s *Service) updateListing(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, lamports uint64) (solana.Signature, error) {
	ix, err := s.builder.UpdateListing(signer.PublicKey(), mint, lamports)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.Submit(ctx, signer, ix)
}

// BuyNFT buys the listing at listingAddr, creating the buyer's token
// account in the same transaction when needed.
func (s *Service) BuyNFT(ctx context.Context, signer solana.PrivateKey, listingAddr solana.PublicKey) (solana.Signature, error) {
	listing, err := s.FetchListing(ctx, listingAddr)
	if err != nil {
		return solana.Signature{}, err
	}
	if !listing.Active {
		return solana.Signature{}, fmt.Errorf("listing %s is not active: %w", listingAddr, ErrListingNotFound)
	}
	mp, err := s.FetchMarketplace(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	buyer := signer.PublicKey()
	createATA, err := CreateTokenAccountIdempotent(buyer, buyer, listing.NFTMint)
	if err != nil {
		return solana.Signature{}, err
	}
	buy, err := s.builder.BuyNFT(buyer, listingAddr, *listing, mp.Authority)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.Submit(ctx, signer, createATA, buy)
}

// CancelListing deactivates signer's listing of mint.
func (s *Service) CancelListing(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey) (solana.Signature, error) {
	ix, err := s.builder.CancelListing(signer.PublicKey(), mint)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.Submit(ctx, signer, ix)
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return key, nil
}

func priceLamports(price decimal.Decimal) (uint64, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("price must be positive, got %s", price)
	}
	lamports, ok := chain.SOLToLamports(price)
	if !ok {
		return 0, fmt.Errorf("price %s exceeds the maximum listing price", price)
	}
	if lamports == 0 {
		return 0, fmt.Errorf("price %s is below one lamport", price)
	}
	return lamports, nil
}
