package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/nftmarket/client"
	"github.com/brojonat/nftmarket/service/market"
	natspkg "github.com/brojonat/nftmarket/service/nats"
	"github.com/urfave/cli/v2"
)

func apiCommands() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Query a running nftmarket HTTP API",
		Subcommands: []*cli.Command{
			apiActivityCommand(),
			apiTransfersCommand(),
			apiSellersCommand(),
			apiStatsCommand(),
			apiListingsCommand(),
			apiStreamCommand(),
		},
	}
}

func newAPIClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, newLogger(c))
}

func apiActivityCommand() *cli.Command {
	return &cli.Command{
		Name:  "activity",
		Usage: "Show the recent activity feed",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of activities (server default when unset)",
			},
		},
		Action: func(c *cli.Context) error {
			activities, status, err := newAPIClient(c).Activities(c.Context, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to get activities: %w", err)
			}
			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{"activities": activities, "status": status})
			}
			printStatus(c, status)
			if len(activities) == 0 {
				fmt.Fprintln(c.App.Writer, "No recent activity")
			}
			for _, a := range activities {
				fmt.Fprintf(c.App.Writer, "%s %s\n   %s\n", a.Icon, a.Description, a.Details)
			}
			return nil
		},
	}
}

func apiTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfers",
		Usage:     "Show the transfer history of a mint",
		ArgsUsage: "MINT_ADDRESS",
		Action: func(c *cli.Context) error {
			mint, err := requireArg(c, "mint address")
			if err != nil {
				return err
			}
			transfers, status, err := newAPIClient(c).Transfers(c.Context, mint)
			if err != nil {
				return fmt.Errorf("failed to get transfers: %w", err)
			}
			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{"mint": mint, "transfers": transfers, "status": status})
			}
			printStatus(c, status)
			printTransfers(c, transfers)
			return nil
		},
	}
}

func apiSellersCommand() *cli.Command {
	return &cli.Command{
		Name:  "sellers",
		Usage: "Show the top sellers",
		Action: func(c *cli.Context) error {
			sellers, status, err := newAPIClient(c).TopSellers(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get top sellers: %w", err)
			}
			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{"sellers": sellers, "status": status})
			}
			printStatus(c, status)
			printSellers(c, sellers)
			return nil
		},
	}
}

func apiStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show market statistics",
		Action: func(c *cli.Context) error {
			stats, status, err := newAPIClient(c).Stats(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{"stats": stats, "status": status})
			}
			printStatus(c, status)
			printStats(c, stats)
			return nil
		},
	}
}

func apiListingsCommand() *cli.Command {
	return &cli.Command{
		Name:      "listings",
		Usage:     "Show active listings, or one listing by mint",
		ArgsUsage: "[MINT_ADDRESS]",
		Action: func(c *cli.Context) error {
			cl := newAPIClient(c)

			if mint := c.Args().First(); mint != "" {
				nft, err := cl.Listing(c.Context, mint)
				if err != nil {
					return fmt.Errorf("failed to get listing: %w", err)
				}
				if wantJSON(c) {
					return printJSON(c, nft)
				}
				printListing(c, nft)
				return nil
			}

			nfts, err := cl.Listings(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get listings: %w", err)
			}
			if wantJSON(c) {
				return printJSON(c, nfts)
			}
			if len(nfts) == 0 {
				fmt.Fprintln(c.App.Writer, "No active listings")
			}
			for _, nft := range nfts {
				printListing(c, &nft)
			}
			return nil
		},
	}
}

func apiStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Stream live marketplace activity via SSE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only stream one kind (mint, list, sale, cancel, transfer)",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			jsonOutput := wantJSON(c)
			if !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "Streaming activity... (Ctrl+C to stop)\n\n")
			}

			err := newAPIClient(c).StreamActivities(ctx, c.String("kind"), func(ev *natspkg.ActivityEvent) error {
				if jsonOutput {
					data, err := json.Marshal(ev)
					if err != nil {
						return err
					}
					if c.String("jq") == "" {
						fmt.Fprintln(c.App.Writer, string(data))
						return nil
					}
					return writeJSON(c.App.Writer, json.RawMessage(data), c.String("jq"))
				}
				printActivityEvent(c, ev)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("activity stream failed: %w", err)
			}
			return nil
		},
	}
}

func printActivityEvent(c *cli.Context, ev *natspkg.ActivityEvent) {
	w := c.App.Writer
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "Kind:       %s\n", ev.Kind)
	fmt.Fprintf(w, "NFT:        %s\n", ev.NFTName)
	fmt.Fprintf(w, "Actor:      %s\n", market.FormatAddress(ev.Actor))
	if ev.Target != "" {
		fmt.Fprintf(w, "Target:     %s\n", market.FormatAddress(ev.Target))
	}
	if ev.Price != nil {
		fmt.Fprintf(w, "Price:      %s SOL\n", ev.Price)
	}
	fmt.Fprintf(w, "Signature:  %s\n", ev.Signature)
	if !ev.BlockTime.IsZero() {
		fmt.Fprintf(w, "Block Time: %s\n", ev.BlockTime.Format(time.RFC3339))
	}
}
