package solana

import (
	"fmt"
	"net/url"
	"strings"
)

// Public cluster endpoints.
const (
	DevnetRPCURL  = "https://api.devnet.solana.com"
	MainnetRPCURL = "https://api.mainnet-beta.solana.com"
)

// DefaultRPCURL returns the public endpoint of network ("devnet" or "mainnet").
func DefaultRPCURL(network string) (string, error) {
	switch network {
	case "devnet":
		return DevnetRPCURL, nil
	case "mainnet":
		return MainnetRPCURL, nil
	default:
		return "", fmt.Errorf("unknown network %q: must be 'devnet' or 'mainnet'", network)
	}
}

// EndpointLabel extracts a short identifier from an RPC URL for metrics labeling.
// Examples:
//   - "https://api.mainnet-beta.solana.com" -> "mainnet"
//   - "https://api.devnet.solana.com" -> "devnet"
//   - "https://mainnet.helius-rpc.com/?api-key=..." -> "helius"
//
// API keys in the query string never end up in the label.
func EndpointLabel(rpcURL string) string {
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		return "unknown"
	}
	host := parsed.Hostname()

	for _, provider := range []string{"helius", "quiknode", "alchemy", "triton", "rpcpool"} {
		if strings.Contains(host, provider) {
			return provider
		}
	}
	for _, cluster := range []string{"mainnet", "devnet", "testnet"} {
		if strings.Contains(host, cluster) {
			return cluster
		}
	}
	if host == "" {
		return "unknown"
	}
	return host
}
