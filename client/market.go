package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/marketplace"
	natspkg "github.com/brojonat/nftmarket/service/nats"
)

// Activity is a feed entry as served by the API, with presentation fields.
type Activity struct {
	market.Activity
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

// Client is the HTTP client for the nftmarket API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new market API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Activities returns the recent activity feed. A limit of 0 uses the
// server default.
func (c *Client) Activities(ctx context.Context, limit int) ([]Activity, market.Status, error) {
	path := "/api/v1/activities"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp struct {
		Activities []Activity    `json:"activities"`
		Status     market.Status `json:"status"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, market.Status{}, err
	}

	c.logger.Debug("activities fetched", "count", len(resp.Activities), "source", resp.Status.Source)
	return resp.Activities, resp.Status, nil
}

// Transfers returns the transfer history of one mint.
func (c *Client) Transfers(ctx context.Context, mint string) ([]market.TransferRecord, market.Status, error) {
	var resp struct {
		Transfers []market.TransferRecord `json:"transfers"`
		Status    market.Status           `json:"status"`
	}
	path := fmt.Sprintf("/api/v1/mints/%s/transfers", url.PathEscape(mint))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, market.Status{}, err
	}
	return resp.Transfers, resp.Status, nil
}

// TopSellers returns the seller leaderboard.
func (c *Client) TopSellers(ctx context.Context) ([]market.SellerSummary, market.Status, error) {
	var resp struct {
		Sellers []market.SellerSummary `json:"sellers"`
		Status  market.Status          `json:"status"`
	}
	if err := c.getJSON(ctx, "/api/v1/sellers/top", &resp); err != nil {
		return nil, market.Status{}, err
	}
	return resp.Sellers, resp.Status, nil
}

// Stats returns the market statistics.
func (c *Client) Stats(ctx context.Context) (market.Stats, market.Status, error) {
	var resp struct {
		Stats  market.Stats  `json:"stats"`
		Status market.Status `json:"status"`
	}
	if err := c.getJSON(ctx, "/api/v1/stats", &resp); err != nil {
		return market.Stats{}, market.Status{}, err
	}
	return resp.Stats, resp.Status, nil
}

// Listings returns all active listings.
func (c *Client) Listings(ctx context.Context) ([]marketplace.ListedNFT, error) {
	var resp struct {
		Listings []marketplace.ListedNFT `json:"listings"`
	}
	if err := c.getJSON(ctx, "/api/v1/listings", &resp); err != nil {
		return nil, err
	}
	return resp.Listings, nil
}

// Listing returns the active listing of one mint.
func (c *Client) Listing(ctx context.Context, mint string) (*marketplace.ListedNFT, error) {
	var nft marketplace.ListedNFT
	if err := c.getJSON(ctx, "/api/v1/listings/"+url.PathEscape(mint), &nft); err != nil {
		return nil, err
	}
	return &nft, nil
}

// Health checks the server liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// StreamActivities subscribes to the live activity stream and calls fn for
// every event until ctx is done, the server closes the stream or fn returns
// an error. An empty kind streams every kind.
func (c *Client) StreamActivities(ctx context.Context, kind string, fn func(*natspkg.ActivityEvent) error) error {
	u := c.baseURL + "/api/v1/stream/activity"
	if kind != "" {
		u += "?kind=" + url.QueryEscape(kind)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any client timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to activity stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if event == "activity" && data != "" {
				var ev natspkg.ActivityEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					c.logger.Warn("failed to decode activity event", "error", err)
				} else if err := fn(&ev); err != nil {
					return err
				}
			}
			event, data = "", ""
			continue
		}
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading activity stream: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
