package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/gagliardetto/solana-go"
)

const (
	maxAddressLength = 100 // Solana addresses are 44 chars, give buffer
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// MarketAggregator reconstructs market views from chain data.
type MarketAggregator interface {
	RecentActivities(ctx context.Context, nfts []marketplace.ListedNFT, limit int) ([]market.Activity, market.Status)
	TransferHistory(ctx context.Context, mint string) ([]market.TransferRecord, market.Status, error)
	MarketStats(ctx context.Context) (market.Stats, market.Status)
}

// ListingService reads marketplace listings.
type ListingService interface {
	FetchAllActiveListings(ctx context.Context) ([]marketplace.ListedNFT, error)
	ActiveListingByMint(ctx context.Context, mint solana.PublicKey) (*marketplace.ListedNFT, error)
}

// activityResponse adds presentation fields to a feed entry.
type activityResponse struct {
	market.Activity
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

// handleActivities returns the recent activity feed of the active listings.
// GET /api/v1/activities?limit=N
func handleActivities(agg MarketAggregator, listings ListingService, defaultLimit, maxLimit int, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r.URL.Query().Get("limit"), defaultLimit, maxLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		nfts, loadErr := listings.FetchAllActiveListings(r.Context())
		if loadErr != nil {
			logger.WarnContext(r.Context(), "failed to load listings for activity feed", "error", loadErr)
			nfts = nil
		}

		activities, status := agg.RecentActivities(r.Context(), nfts, limit)
		if loadErr != nil && status.Reason == "" {
			status.Reason = "failed to load listings: " + loadErr.Error()
		}

		resp := make([]activityResponse, len(activities))
		for i, act := range activities {
			resp[i] = activityResponse{
				Activity:    act,
				Icon:        market.ActivityIcon(act.Kind),
				Description: market.Describe(act),
				Details:     market.Details(act),
			}
		}

		logger.DebugContext(r.Context(), "activities listed", "count", len(resp), "source", status.Source)
		writeJSON(w, map[string]interface{}{
			"activities": resp,
			"count":      len(resp),
			"status":     status,
		}, http.StatusOK)
	})
}

// handleTransfers returns the transfer history of one mint.
// GET /api/v1/mints/{mint}/transfers
func handleTransfers(agg MarketAggregator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mint := r.PathValue("mint")
		if err := validateAddress(mint); err != nil {
			logger.DebugContext(r.Context(), "invalid mint", "mint", mint, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		transfers, status, err := agg.TransferHistory(r.Context(), mint)
		if errors.Is(err, market.ErrInvalidMint) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get transfer history", "mint", mint, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"mint":      mint,
			"transfers": transfers,
			"count":     len(transfers),
			"status":    status,
		}, http.StatusOK)
	})
}

// handleTopSellers returns the seller leaderboard.
// GET /api/v1/sellers/top
func handleTopSellers(listings ListingService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			sellers []market.SellerSummary
			status  market.Status
		)
		nfts, err := listings.FetchAllActiveListings(r.Context())
		if err != nil {
			logger.WarnContext(r.Context(), "failed to load listings, using default sellers", "error", err)
			sellers = market.DefaultSellers()
			status = market.Status{Source: market.SourceDefault, Reason: "failed to load listings: " + err.Error()}
		} else {
			sellers, status = market.TopSellers(nfts)
		}

		writeJSON(w, map[string]interface{}{
			"sellers": sellers,
			"status":  status,
		}, http.StatusOK)
	})
}

// handleStats returns the derived market statistics.
// GET /api/v1/stats
func handleStats(agg MarketAggregator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, status := agg.MarketStats(r.Context())
		logger.DebugContext(r.Context(), "stats computed",
			"total_sales", stats.TotalSales,
			"source", status.Source,
		)
		writeJSON(w, map[string]interface{}{
			"stats":  stats,
			"status": status,
		}, http.StatusOK)
	})
}

// handleListListings returns the active, metadata-enriched listings.
// GET /api/v1/listings
func handleListListings(listings ListingService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nfts, err := listings.FetchAllActiveListings(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to load listings", "error", err)
			writeError(w, "failed to load listings", http.StatusBadGateway)
			return
		}
		if nfts == nil {
			nfts = []marketplace.ListedNFT{}
		}

		writeJSON(w, map[string]interface{}{
			"listings": nfts,
			"count":    len(nfts),
		}, http.StatusOK)
	})
}

// handleGetListing returns the active listing of one mint.
// GET /api/v1/listings/{mint}
func handleGetListing(listings ListingService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mint := r.PathValue("mint")
		if err := validateAddress(mint); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		pubkey, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			writeError(w, "invalid address format: not a valid public key", http.StatusBadRequest)
			return
		}

		nft, err := listings.ActiveListingByMint(r.Context(), pubkey)
		if errors.Is(err, marketplace.ErrListingNotFound) {
			writeError(w, "listing not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get listing", "mint", mint, "error", err)
			writeError(w, "failed to load listing", http.StatusBadGateway)
			return
		}

		writeJSON(w, nft, http.StatusOK)
	})
}

// parseLimit parses an optional limit query parameter within [1, max].
func parseLimit(raw string, defaultLimit, max int) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf("invalid limit parameter: must be an integer")
	}
	if limit < 1 {
		return 0, errorf("limit must be at least 1")
	}
	if limit > max {
		return 0, errorf("limit cannot exceed %d", max)
	}
	return limit, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates an address path parameter for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	lowerAddr := strings.ToLower(address)
	sqlPatterns := []string{"drop ", "delete ", "insert ", "update ", "select ", "--", "/*", "*/", ";"}
	for _, pattern := range sqlPatterns {
		if strings.Contains(lowerAddr, pattern) {
			return errorf("invalid characters in address: suspicious pattern detected")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
