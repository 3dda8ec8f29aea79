package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/nftmarket/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func dbCommands() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Activity archive commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Subcommands: []*cli.Command{
			migrateCommand(),
			archivedActivitiesCommand(),
			latestSnapshotCommand(),
		},
	}
}

// getStore opens the archive. The returned closer releases the pool.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database URL is required (set DATABASE_URL or use --database-url)")
	}

	pool, err := pgxpool.New(c.Context, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db.NewStore(pool, nil), pool.Close, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the archive tables",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Archive schema is up to date")
			return nil
		},
	}
}

func archivedActivitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "activities",
		Usage: "List archived activities, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of activities",
				Value:   20,
			},
		},
		Action: func(c *cli.Context) error {
			limit := c.Int("limit")
			if limit < 1 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			activities, err := store.ListActivities(ctx, limit)
			if err != nil {
				return err
			}
			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{"activities": activities})
			}
			printActivities(c, activities)
			return nil
		},
	}
}

func latestSnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Show the most recent archived market stats",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			snap, err := store.LatestSnapshot(c.Context)
			if errors.Is(err, db.ErrNoSnapshot) {
				fmt.Fprintln(c.App.ErrWriter, "No snapshot archived yet")
				return nil
			}
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{
					"id":      snap.ID,
					"stats":   snap.Stats,
					"status":  snap.Status,
					"takenAt": snap.TakenAt,
				})
			}
			fmt.Fprintf(c.App.Writer, "Snapshot #%d taken %s\n", snap.ID, snap.TakenAt.Format(time.RFC3339))
			printStats(c, snap.Stats)
			printStatus(c, snap.Status)
			return nil
		},
	}
}
