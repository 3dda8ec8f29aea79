package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/nftmarket/service/metrics"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	fallbackDescription = "Metadata unavailable"
	missingDescription  = "No description available"
	defaultCategory     = "collectible"

	// maxMetadataBytes bounds the off-chain JSON document.
	maxMetadataBytes = 1 << 20
)

// AccountReader reads raw accounts.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Attribute is one trait of the off-chain metadata document.
type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// Metadata is the resolved description of an NFT.
type Metadata struct {
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol,omitempty"`
	URI         string      `json:"uri,omitempty"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Category    string      `json:"category"`
	Attributes  []Attribute `json:"attributes"`
	Creators    []string    `json:"creators,omitempty"`
}

// FallbackMetadata is used when nothing could be resolved for mint.
func FallbackMetadata(mint string) Metadata {
	return Metadata{
		Name:        "NFT " + shortMint(mint),
		Description: fallbackDescription,
		Category:    defaultCategory,
		Attributes:  []Attribute{},
	}
}

func shortMint(mint string) string {
	if len(mint) <= 6 {
		return mint
	}
	return mint[:6]
}

// onChainMetadata is the prefix of the token metadata account we need.
type onChainMetadata struct {
	Key             uint8
	UpdateAuthority solana.PublicKey
	Mint            solana.PublicKey
	Name            string
	Symbol          string
	URI             string
	SellerFeeBps    uint16
	Creators        *[]onChainCreator `bin:"optional"`
}

type onChainCreator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

type offChainMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	Properties  struct {
		Category string `json:"category"`
	} `json:"properties"`
}

// MetadataResolver combines the on-chain metadata account with the JSON
// document it points to.
type MetadataResolver struct {
	accounts   AccountReader
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewMetadataResolver creates a resolver. timeout bounds each off-chain fetch.
func NewMetadataResolver(accounts AccountReader, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *MetadataResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MetadataResolver{
		accounts:   accounts,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

// Resolve never fails: missing on-chain data yields FallbackMetadata, and a
// missing off-chain document keeps the on-chain name and creators.
func (r *MetadataResolver) Resolve(ctx context.Context, mint solana.PublicKey) Metadata {
	onChain, err := r.fetchOnChain(ctx, mint)
	if err != nil {
		r.logger.WarnContext(ctx, "metadata unavailable, using fallback",
			"mint", mint.String(),
			"error", err,
		)
		r.record("fallback")
		return FallbackMetadata(mint.String())
	}

	md := Metadata{
		Name:       trimPadding(onChain.Name),
		Symbol:     trimPadding(onChain.Symbol),
		URI:        trimPadding(onChain.URI),
		Category:   defaultCategory,
		Attributes: []Attribute{},
	}
	if onChain.Creators != nil {
		for _, c := range *onChain.Creators {
			md.Creators = append(md.Creators, c.Address.String())
		}
	}

	var offChain *offChainMetadata
	if md.URI != "" {
		offChain, err = r.fetchOffChain(ctx, md.URI)
		if err != nil {
			r.logger.WarnContext(ctx, "could not fetch off-chain metadata",
				"mint", mint.String(),
				"uri", md.URI,
				"error", err,
			)
		}
	}
	if offChain == nil {
		r.record("partial")
		md.Description = missingDescription
		md.Image = md.URI
		if md.Name == "" {
			md.Name = "NFT " + shortMint(mint.String())
		}
		return md
	}

	r.record("success")
	if md.Name == "" {
		md.Name = offChain.Name
	}
	if md.Name == "" {
		md.Name = "NFT " + shortMint(mint.String())
	}
	md.Description = offChain.Description
	if md.Description == "" {
		md.Description = missingDescription
	}
	md.Image = offChain.Image
	if md.Image == "" {
		md.Image = md.URI
	}
	if offChain.Attributes != nil {
		md.Attributes = offChain.Attributes
	}
	md.Category = categoryOf(offChain)
	return md
}

func (r *MetadataResolver) fetchOnChain(ctx context.Context, mint solana.PublicKey) (*onChainMetadata, error) {
	addr, err := MetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	res, err := r.accounts.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata account: %w", err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, fmt.Errorf("metadata account %s is empty", addr)
	}

	var md onChainMetadata
	if err := bin.NewBorshDecoder(res.Value.Data.GetBinary()).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata account: %w", err)
	}
	return &md, nil
}

func (r *MetadataResolver) fetchOffChain(ctx context.Context, uri string) (*offChainMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc offChainMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata document: %w", err)
	}
	return &doc, nil
}

func (r *MetadataResolver) record(status string) {
	if r.metrics != nil {
		r.metrics.RecordMetadataFetch(status)
	}
}

// categoryOf prefers properties.category, then a "category" attribute.
func categoryOf(doc *offChainMetadata) string {
	if doc.Properties.Category != "" {
		return doc.Properties.Category
	}
	for _, attr := range doc.Attributes {
		if strings.EqualFold(attr.TraitType, "category") {
			if s, ok := attr.Value.(string); ok && s != "" {
				return s
			}
		}
	}
	return defaultCategory
}

// trimPadding strips the NUL padding of fixed-width metadata strings.
func trimPadding(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
