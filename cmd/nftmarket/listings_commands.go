package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func listingsCommands() *cli.Command {
	return &cli.Command{
		Name:  "listings",
		Usage: "Read and manage marketplace listings",
		Subcommands: []*cli.Command{
			listListingsCommand(),
			getListingCommand(),
			marketplaceInfoCommand(),
			createListingCommand(),
			updateListingCommand(),
			buyListingCommand(),
			cancelListingCommand(),
			initMarketplaceCommand(),
		},
	}
}

func keypairFlag() cli.Flag {
	home, _ := os.UserHomeDir()
	return &cli.StringFlag{
		Name:    "keypair",
		Aliases: []string{"k"},
		Usage:   "Path to the signer's solana-keygen JSON keypair",
		EnvVars: []string{"SOLANA_KEYPAIR"},
		Value:   filepath.Join(home, ".config", "solana", "id.json"),
	}
}

func priceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "price",
		Aliases:  []string{"p"},
		Usage:    "Price in SOL",
		Required: true,
	}
}

func parsePrice(c *cli.Context) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: %w", c.String("price"), err)
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("price must be positive")
	}
	return price, nil
}

func listListingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List active listings with metadata",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Include inactive listings (raw accounts, no metadata)",
			},
		},
		Action: func(c *cli.Context) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}

			if c.Bool("all") {
				accounts, err := d.listings.FetchAllListings(c.Context)
				if err != nil {
					return fmt.Errorf("failed to fetch listings: %w", err)
				}
				if wantJSON(c) {
					return printJSON(c, accounts)
				}
				for _, a := range accounts {
					state := "active"
					if !a.Listing.Active {
						state = "inactive"
					}
					fmt.Fprintf(c.App.Writer, "%s  mint=%s  seller=%s  %s SOL  %s\n",
						a.Address, a.Listing.NFTMint, a.Listing.Seller, a.Listing.PriceSOL(), state)
				}
				return nil
			}

			nfts, err := d.listings.FetchAllActiveListings(c.Context)
			if err != nil {
				return fmt.Errorf("failed to fetch listings: %w", err)
			}
			if wantJSON(c) {
				return printJSON(c, nfts)
			}
			if len(nfts) == 0 {
				fmt.Fprintln(c.App.Writer, "No active listings")
				return nil
			}
			for _, nft := range nfts {
				printListing(c, &nft)
			}
			return nil
		},
	}
}

func printListing(c *cli.Context, nft *marketplace.ListedNFT) {
	w := c.App.Writer
	fmt.Fprintf(w, "%s  %s SOL\n", nft.Name, nft.Price)
	fmt.Fprintf(w, "   Mint:     %s\n", nft.Mint)
	fmt.Fprintf(w, "   Seller:   %s\n", nft.Seller)
	fmt.Fprintf(w, "   Listing:  %s\n", nft.ID)
	if nft.Category != "" {
		fmt.Fprintf(w, "   Category: %s\n", nft.Category)
	}
}

func getListingCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show the active listing of a mint",
		ArgsUsage: "MINT_ADDRESS",
		Action: func(c *cli.Context) error {
			arg, err := requireArg(c, "mint address")
			if err != nil {
				return err
			}
			mint, err := parsePublicKey("mint", arg)
			if err != nil {
				return err
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}
			nft, err := d.listings.ActiveListingByMint(c.Context, mint)
			if err != nil {
				return fmt.Errorf("failed to get listing: %w", err)
			}

			if wantJSON(c) {
				return printJSON(c, nft)
			}
			printListing(c, nft)
			return nil
		},
	}
}

func marketplaceInfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "marketplace",
		Usage: "Show the marketplace account",
		Action: func(c *cli.Context) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}
			mp, err := d.listings.FetchMarketplace(c.Context)
			if err != nil {
				return fmt.Errorf("failed to fetch marketplace: %w", err)
			}
			addr, err := marketplace.MarketplaceAddress(d.listings.ProgramID())
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{
					"address":   addr.String(),
					"authority": mp.Authority.String(),
					"fee_bps":   mp.Fee,
				})
			}
			fmt.Fprintf(c.App.Writer, "Marketplace: %s\n", addr)
			fmt.Fprintf(c.App.Writer, "Authority:   %s\n", mp.Authority)
			fmt.Fprintf(c.App.Writer, "Fee:         %d bps\n", mp.Fee)
			return nil
		},
	}
}

// withSigner loads the keypair and the program client for a write command.
func withSigner(c *cli.Context) (*deps, solana.PrivateKey, error) {
	signer, err := marketplace.LoadKeypair(c.String("keypair"))
	if err != nil {
		return nil, nil, err
	}
	d, err := newDeps(c)
	if err != nil {
		return nil, nil, err
	}
	return d, signer, nil
}

func printSignature(c *cli.Context, action string, sig solana.Signature) error {
	if wantJSON(c) {
		return printJSON(c, map[string]string{"action": action, "signature": sig.String()})
	}
	fmt.Fprintf(c.App.Writer, "✓ %s\n  Signature: %s\n", action, sig)
	return nil
}

func createListingCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "List an NFT for sale (updates the price if already listed)",
		ArgsUsage: "MINT_ADDRESS",
		Flags:     []cli.Flag{keypairFlag(), priceFlag()},
		Action: func(c *cli.Context) error {
			arg, err := requireArg(c, "mint address")
			if err != nil {
				return err
			}
			mint, err := parsePublicKey("mint", arg)
			if err != nil {
				return err
			}
			price, err := parsePrice(c)
			if err != nil {
				return err
			}
			d, signer, err := withSigner(c)
			if err != nil {
				return err
			}

			sig, err := d.listings.ListNFT(c.Context, signer, mint, price)
			if err != nil {
				return fmt.Errorf("failed to list NFT: %w", err)
			}
			return printSignature(c, fmt.Sprintf("Listed %s for %s SOL", mint, price), sig)
		},
	}
}

func updateListingCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change the price of your listing",
		ArgsUsage: "MINT_ADDRESS",
		Flags:     []cli.Flag{keypairFlag(), priceFlag()},
		Action: func(c *cli.Context) error {
			arg, err := requireArg(c, "mint address")
			if err != nil {
				return err
			}
			mint, err := parsePublicKey("mint", arg)
			if err != nil {
				return err
			}
			price, err := parsePrice(c)
			if err != nil {
				return err
			}
			d, signer, err := withSigner(c)
			if err != nil {
				return err
			}

			sig, err := d.listings.UpdateListing(c.Context, signer, mint, price)
			if err != nil {
				return fmt.Errorf("failed to update listing: %w", err)
			}
			return printSignature(c, fmt.Sprintf("Repriced %s to %s SOL", mint, price), sig)
		},
	}
}

func buyListingCommand() *cli.Command {
	return &cli.Command{
		Name:      "buy",
		Usage:     "Buy a listed NFT",
		ArgsUsage: "MINT_ADDRESS",
		Flags: []cli.Flag{
			keypairFlag(),
			&cli.StringFlag{
				Name:  "listing",
				Usage: "Listing account address (skips the lookup by mint)",
			},
		},
		Action: func(c *cli.Context) error {
			d, signer, err := withSigner(c)
			if err != nil {
				return err
			}

			var listingAddr solana.PublicKey
			if raw := c.String("listing"); raw != "" {
				if listingAddr, err = parsePublicKey("listing", raw); err != nil {
					return err
				}
			} else {
				arg, err := requireArg(c, "mint address")
				if err != nil {
					return err
				}
				mint, err := parsePublicKey("mint", arg)
				if err != nil {
					return err
				}
				nft, err := d.listings.ActiveListingByMint(c.Context, mint)
				if err != nil {
					return fmt.Errorf("failed to find listing: %w", err)
				}
				if listingAddr, err = parsePublicKey("listing", nft.ID); err != nil {
					return err
				}
			}

			sig, err := d.listings.BuyNFT(c.Context, signer, listingAddr)
			if err != nil {
				return fmt.Errorf("failed to buy NFT: %w", err)
			}
			return printSignature(c, fmt.Sprintf("Bought listing %s", listingAddr), sig)
		},
	}
}

func cancelListingCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel your listing of an NFT",
		ArgsUsage: "MINT_ADDRESS",
		Flags:     []cli.Flag{keypairFlag()},
		Action: func(c *cli.Context) error {
			arg, err := requireArg(c, "mint address")
			if err != nil {
				return err
			}
			mint, err := parsePublicKey("mint", arg)
			if err != nil {
				return err
			}
			d, signer, err := withSigner(c)
			if err != nil {
				return err
			}

			sig, err := d.listings.CancelListing(c.Context, signer, mint)
			if err != nil {
				return fmt.Errorf("failed to cancel listing: %w", err)
			}
			return printSignature(c, fmt.Sprintf("Canceled listing of %s", mint), sig)
		},
	}
}

func initMarketplaceCommand() *cli.Command {
	return &cli.Command{
		Name:  "init-marketplace",
		Usage: "Initialize the marketplace with the signer as authority",
		Flags: []cli.Flag{
			keypairFlag(),
			&cli.UintFlag{
				Name:  "fee-bps",
				Usage: "Marketplace fee in basis points (0-10000)",
				Value: 250,
			},
		},
		Action: func(c *cli.Context) error {
			fee := c.Uint("fee-bps")
			if fee > 10_000 {
				return fmt.Errorf("fee-bps must be at most 10000")
			}
			d, signer, err := withSigner(c)
			if err != nil {
				return err
			}

			sig, err := d.listings.InitializeMarketplace(c.Context, signer, uint16(fee))
			if err != nil {
				return fmt.Errorf("failed to initialize marketplace: %w", err)
			}
			return printSignature(c, fmt.Sprintf("Initialized marketplace (fee %d bps)", fee), sig)
		},
	}
}
