package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/metrics"
	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// deps bundles the chain-facing components a command needs.
type deps struct {
	rpc        *chain.RPCAdapter
	chain      *chain.Client
	listings   *marketplace.Service
	aggregator *market.Aggregator
	logger     *slog.Logger
}

func newLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// rpcURL resolves --rpc-url, falling back to the public endpoint of --network.
func rpcURL(c *cli.Context) (string, error) {
	if u := c.String("rpc-url"); u != "" {
		return u, nil
	}
	return chain.DefaultRPCURL(c.String("network"))
}

// newDeps wires the RPC adapter, program client and aggregator. Metrics are
// not collected from the CLI.
func newDeps(c *cli.Context) (*deps, error) {
	logger := newLogger(c)

	url, err := rpcURL(c)
	if err != nil {
		return nil, err
	}

	programID, err := solana.PublicKeyFromBase58(c.String("program-id"))
	if err != nil {
		return nil, fmt.Errorf("invalid program-id: %w", err)
	}

	var m *metrics.Metrics
	rpcClient := chain.NewRPCClient(url, c.Int("rpc-rps"), m)
	chainClient := chain.NewClient(rpcClient, rpcClient.Endpoint(), m, logger)
	resolver := marketplace.NewMetadataResolver(rpcClient, 0, m, logger)
	listings := marketplace.NewService(rpcClient, programID, resolver, m, logger)

	return &deps{
		rpc:        rpcClient,
		chain:      chainClient,
		listings:   listings,
		aggregator: market.NewAggregator(chainClient, listings, m, logger),
		logger:     logger,
	}, nil
}

// wantJSON reports whether output should be JSON.
func wantJSON(c *cli.Context) bool {
	return c.Bool("json") || c.String("jq") != ""
}

// printJSON writes v as indented JSON, or the results of --jq when set.
func printJSON(c *cli.Context, v interface{}) error {
	return writeJSON(c.App.Writer, v, c.String("jq"))
}

func writeJSON(w io.Writer, v interface{}, filter string) error {
	if filter == "" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	results, err := runJQ(filter, v)
	if err != nil {
		return err
	}
	for _, r := range results {
		if s, ok := r.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// runJQ evaluates filter against v after a JSON round trip, so struct tags
// decide the field names the filter sees.
func runJQ(filter string, v interface{}) ([]interface{}, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}

	var out []interface{}
	iter := code.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			return nil, fmt.Errorf("jq filter %q failed: %w", filter, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// printStatus notes degraded results on stderr.
func printStatus(c *cli.Context, status market.Status) {
	if status.Degraded() {
		fmt.Fprintf(c.App.ErrWriter, "⚠️  showing %s data: %s\n", status.Source, status.Reason)
	}
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("%s is required", name)
	}
	return strings.TrimSpace(c.Args().First()), nil
}

func parsePublicKey(name, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return key, nil
}
