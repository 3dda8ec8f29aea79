package main

import (
	"fmt"
	"log"
	"os"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Values from a local .env never override the real environment.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "nftmarket",
		Usage: "Solana NFT marketplace CLI",
		Description: `A command-line tool for the nftmarket service.

Use this CLI to read market activity straight from the chain, manage
listings on the marketplace program, pin assets to IPFS, query the HTTP
API, and operate the refresh schedule and activity stream.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			marketCommands(),
			listingsCommands(),
			storageCommands(),
			apiCommands(),
			temporalCommands(),
			natsCommands(),
			dbCommands(),
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Solana network (devnet or mainnet)",
				EnvVars: []string{"SOLANA_NETWORK"},
				Value:   "devnet",
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL (defaults to the public endpoint of --network)",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.IntFlag{
				Name:    "rpc-rps",
				Usage:   "Client-side RPC request rate limit",
				EnvVars: []string{"SOLANA_RPC_RPS"},
				Value:   10,
			},
			&cli.StringFlag{
				Name:    "program-id",
				Usage:   "Marketplace program ID",
				EnvVars: []string{"MARKETPLACE_PROGRAM_ID"},
				Value:   config.DefaultProgramID,
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "nftmarket HTTP API URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   config.DefaultTaskQueue,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for diagnostics on stderr",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the JSON output (implies --json)",
			},
		},
	}
}
