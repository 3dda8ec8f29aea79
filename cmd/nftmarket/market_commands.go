package main

import (
	"fmt"
	"time"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/brojonat/nftmarket/service/market"
	"github.com/urfave/cli/v2"
)

func marketCommands() *cli.Command {
	return &cli.Command{
		Name:  "market",
		Usage: "Read market views directly from the chain",
		Subcommands: []*cli.Command{
			marketActivityCommand(),
			marketHistoryCommand(),
			marketSellersCommand(),
			marketStatsCommand(),
		},
	}
}

func marketActivityCommand() *cli.Command {
	return &cli.Command{
		Name:  "activity",
		Usage: "Show recent marketplace activity",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   market.DefaultActivityLimit,
				Usage:   fmt.Sprintf("Maximum number of activities (1-%d)", config.MaxActivityLimit),
			},
		},
		Action: func(c *cli.Context) error {
			limit := c.Int("limit")
			if limit < 1 || limit > config.MaxActivityLimit {
				return fmt.Errorf("limit must be between 1 and %d", config.MaxActivityLimit)
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}

			nfts, err := d.listings.FetchAllActiveListings(c.Context)
			if err != nil {
				d.logger.Warn("failed to load listings", "error", err)
				nfts = nil
			}
			activities, status := d.aggregator.RecentActivities(c.Context, nfts, limit)

			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{"activities": activities, "status": status})
			}
			printStatus(c, status)
			printActivities(c, activities)
			return nil
		},
	}
}

func printActivities(c *cli.Context, activities []market.Activity) {
	w := c.App.Writer
	if len(activities) == 0 {
		fmt.Fprintln(w, "No recent activity")
		return
	}
	for _, a := range activities {
		fmt.Fprintf(w, "%s %s\n", market.ActivityIcon(a.Kind), market.Describe(a))
		fmt.Fprintf(w, "   %s\n", market.Details(a))
		if a.Signature != "" {
			fmt.Fprintf(w, "   Signature: %s\n", a.Signature)
		}
	}
}

func marketHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the transfer history of an NFT mint",
		ArgsUsage: "MINT_ADDRESS",
		Action: func(c *cli.Context) error {
			mint, err := requireArg(c, "mint address")
			if err != nil {
				return err
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}

			transfers, status, err := d.aggregator.TransferHistory(c.Context, mint)
			if err != nil {
				return fmt.Errorf("failed to load transfer history: %w", err)
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

func printTransfers(c *cli.Context, transfers []market.TransferRecord) {
	w := c.App.Writer
	if len(transfers) == 0 {
		fmt.Fprintln(w, "No transfers found")
		return
	}
	for _, t := range transfers {
		result := "✓"
		if !t.Success {
			result = "✗"
		}
		fmt.Fprintf(w, "%s %-8s %s → %s  %s\n",
			result,
			t.Type,
			market.FormatAddress(t.Sender),
			market.FormatAddress(t.Recipient),
			t.Timestamp.Format(time.RFC3339),
		)
		fmt.Fprintf(w, "   Signature: %s\n", t.Signature)
	}
}

func marketSellersCommand() *cli.Command {
	return &cli.Command{
		Name:  "sellers",
		Usage: "Show the top sellers by listed NFTs",
		Action: func(c *cli.Context) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}

			var (
				sellers []market.SellerSummary
				status  market.Status
			)
			nfts, err := d.listings.FetchAllActiveListings(c.Context)
			if err != nil {
				sellers = market.DefaultSellers()
				status = market.Status{Source: market.SourceDefault, Reason: err.Error()}
			} else {
				sellers, status = market.TopSellers(nfts)
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

func printSellers(c *cli.Context, sellers []market.SellerSummary) {
	w := c.App.Writer
	if len(sellers) == 0 {
		fmt.Fprintln(w, "No sellers yet")
		return
	}
	for _, s := range sellers {
		fmt.Fprintf(w, "%s %s  %d listed\n", s.Avatar, market.FormatAddress(s.Address), s.ListedNFTs)
	}
}

func marketStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show market statistics",
		Action: func(c *cli.Context) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}

			stats, status := d.aggregator.MarketStats(c.Context)

			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{"stats": stats, "status": status})
			}
			printStatus(c, status)
			printStats(c, stats)
			return nil
		},
	}
}

func printStats(c *cli.Context, stats market.Stats) {
	w := c.App.Writer
	fmt.Fprintf(w, "Total volume:   %s SOL\n", stats.TotalVolume.StringFixed(2))
	fmt.Fprintf(w, "Total sales:    %d\n", stats.TotalSales)
	fmt.Fprintf(w, "Creators:       %d\n", stats.TotalCreators)
	fmt.Fprintf(w, "Average price:  %s SOL\n", stats.AvgPrice.StringFixed(2))
}
