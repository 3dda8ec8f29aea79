package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/brojonat/nftmarket/service/marketplace"
	"github.com/brojonat/nftmarket/service/storage"
	"github.com/urfave/cli/v2"
)

func storageCommands() *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Pin NFT assets and metadata to IPFS via Pinata",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pinata-api-key",
				Usage:   "Pinata API key",
				EnvVars: []string{"PINATA_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "pinata-secret-key",
				Usage:   "Pinata secret API key",
				EnvVars: []string{"PINATA_SECRET_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "pinata-api-url",
				Usage:   "Pinata API base URL",
				EnvVars: []string{"PINATA_API_URL"},
				Value:   storage.DefaultAPIURL,
			},
			&cli.StringFlag{
				Name:    "pinata-gateway-url",
				Usage:   "IPFS gateway used for returned URLs",
				EnvVars: []string{"PINATA_GATEWAY_URL"},
				Value:   config.DefaultPinataGateway,
			},
		},
		Subcommands: []*cli.Command{
			uploadFileCommand(),
			uploadMetadataCommand(),
		},
	}
}

func newPinata(c *cli.Context) *storage.Pinata {
	return storage.NewPinata(storage.PinataConfig{
		APIKey:     c.String("pinata-api-key"),
		SecretKey:  c.String("pinata-secret-key"),
		APIURL:     c.String("pinata-api-url"),
		GatewayURL: c.String("pinata-gateway-url"),
	}, nil, newLogger(c))
}

func uploadFileCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload-file",
		Usage:     "Pin a file (usually the NFT image)",
		ArgsUsage: "PATH",
		Action: func(c *cli.Context) error {
			path, err := requireArg(c, "file path")
			if err != nil {
				return err
			}
			url, err := pinFile(c, newPinata(c), path)
			if err != nil {
				return err
			}
			if wantJSON(c) {
				return printJSON(c, map[string]string{"url": url})
			}
			fmt.Fprintln(c.App.Writer, url)
			return nil
		},
	}
}

func pinFile(c *cli.Context, p *storage.Pinata, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	url, err := p.UploadFile(c.Context, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return url, nil
}

// nftMetadata is the off-chain JSON document a mint's URI points to.
type nftMetadata struct {
	Name        string                  `json:"name"`
	Symbol      string                  `json:"symbol"`
	Description string                  `json:"description"`
	Image       string                  `json:"image"`
	Attributes  []marketplace.Attribute `json:"attributes"`
	Properties  nftMetadataProperties   `json:"properties"`
}

type nftMetadataProperties struct {
	Files    []nftMetadataFile `json:"files"`
	Category string            `json:"category"`
}

type nftMetadataFile struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

func uploadMetadataCommand() *cli.Command {
	return &cli.Command{
		Name:  "upload-metadata",
		Usage: "Pin an NFT metadata document",
		Description: `Pin either an existing JSON document (--file) or one built from flags.
With --image-file the image is pinned first and its URL used as the image.

Example:
  nftmarket storage upload-metadata --name "Cat #1" --image-file cat.png \
    --attribute background=blue --attribute eyes=laser`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "Existing metadata JSON document"},
			&cli.StringFlag{Name: "name", Usage: "NFT name"},
			&cli.StringFlag{Name: "symbol", Usage: "NFT symbol", Value: "NFT"},
			&cli.StringFlag{Name: "description", Usage: "NFT description"},
			&cli.StringFlag{Name: "image", Usage: "Image URL"},
			&cli.StringFlag{Name: "image-file", Usage: "Image file to pin first"},
			&cli.StringFlag{Name: "category", Usage: "Category", Value: "image"},
			&cli.StringSliceFlag{Name: "attribute", Usage: "Trait as key=value (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			p := newPinata(c)

			var doc interface{}
			if path := c.String("file"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				doc = json.RawMessage(data)
			} else {
				meta, err := metadataFromFlags(c)
				if err != nil {
					return err
				}
				if imagePath := c.String("image-file"); imagePath != "" {
					url, err := pinFile(c, p, imagePath)
					if err != nil {
						return err
					}
					meta.Image = url
					meta.Properties.Files = []nftMetadataFile{{URI: url, Type: mimeType(imagePath)}}
				}
				doc = meta
			}

			url, err := p.UploadMetadata(c.Context, doc)
			if err != nil {
				return fmt.Errorf("failed to upload metadata: %w", err)
			}
			if wantJSON(c) {
				return printJSON(c, map[string]string{"url": url})
			}
			fmt.Fprintln(c.App.Writer, url)
			return nil
		},
	}
}

func metadataFromFlags(c *cli.Context) (*nftMetadata, error) {
	if c.String("name") == "" {
		return nil, fmt.Errorf("--name is required unless --file is given")
	}
	attrs, err := parseAttributes(c.StringSlice("attribute"))
	if err != nil {
		return nil, err
	}
	meta := &nftMetadata{
		Name:        c.String("name"),
		Symbol:      c.String("symbol"),
		Description: c.String("description"),
		Image:       c.String("image"),
		Attributes:  attrs,
		Properties: nftMetadataProperties{
			Files:    []nftMetadataFile{},
			Category: c.String("category"),
		},
	}
	if meta.Image != "" {
		meta.Properties.Files = []nftMetadataFile{{URI: meta.Image, Type: mimeType(meta.Image)}}
	}
	return meta, nil
}

func parseAttributes(raw []string) ([]marketplace.Attribute, error) {
	attrs := make([]marketplace.Attribute, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected key=value", kv)
		}
		attrs = append(attrs, marketplace.Attribute{
			TraitType: strings.TrimSpace(key),
			Value:     strings.TrimSpace(value),
		})
	}
	return attrs, nil
}

func mimeType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}
