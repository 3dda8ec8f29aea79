package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Pinata endpoints.
const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud/ipfs"
)

// ErrMissingCredentials is returned when an upload is attempted without API keys.
var ErrMissingCredentials = errors.New("pinata API key and secret are required")

// PinataConfig holds the pinning service credentials and endpoints.
type PinataConfig struct {
	APIKey     string
	SecretKey  string
	APIURL     string // defaults to DefaultAPIURL
	GatewayURL string // defaults to DefaultGatewayURL
}

// Pinata uploads files and JSON documents to IPFS through Pinata and
// returns their gateway URLs.
type Pinata struct {
	cfg        PinataConfig
	httpClient *http.Client
	logger     *slog.Logger
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewPinata creates a Pinata client.
func NewPinata(cfg PinataConfig, httpClient *http.Client, logger *slog.Logger) *Pinata {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultGatewayURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Pinata{cfg: cfg, httpClient: httpClient, logger: logger}
}

// GatewayURL returns the public URL of a content hash.
func (p *Pinata) GatewayURL(hash string) string {
	return p.cfg.GatewayURL + "/" + hash
}

// UploadFile pins the content of r under name and returns its gateway URL.
func (p *Pinata) UploadFile(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := p.checkCredentials(); err != nil {
		return "", err
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":0,"wrapWithDirectory":false}`); err != nil {
		return "", fmt.Errorf("failed to write options: %w", err)
	}
	meta, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"keyvalues": map[string]string{"type": "image"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	url, err := p.pin(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), body)
	if err != nil {
		return "", err
	}
	p.logger.InfoContext(ctx, "file pinned", "name", name, "url", url)
	return url, nil
}

// UploadMetadata pins a JSON document and returns its gateway URL.
func (p *Pinata) UploadMetadata(ctx context.Context, metadata interface{}) (string, error) {
	if err := p.checkCredentials(); err != nil {
		return "", err
	}

	var body []byte
	switch v := metadata.(type) {
	case json.RawMessage:
		body = v
	case []byte:
		body = v
	default:
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("failed to marshal metadata: %w", err)
		}
		body = b
	}
	if !json.Valid(body) {
		return "", errors.New("metadata is not valid JSON")
	}

	url, err := p.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	p.logger.InfoContext(ctx, "metadata pinned", "url", url)
	return url, nil
}

func (p *Pinata) checkCredentials() error {
	if p.cfg.APIKey == "" || p.cfg.SecretKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (p *Pinata) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+path, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", p.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", p.cfg.SecretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("pinata returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", errors.New("pinata response has no IpfsHash")
	}
	return p.GatewayURL(out.IpfsHash), nil
}
