package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/nftmarket/service/config"
	"github.com/brojonat/nftmarket/service/market"
	"github.com/brojonat/nftmarket/service/temporal"
	"github.com/urfave/cli/v2"
)

func temporalCommands() *cli.Command {
	return &cli.Command{
		Name:  "temporal",
		Usage: "Manage the market refresh schedule",
		Subcommands: []*cli.Command{
			createScheduleCommand(),
			describeScheduleCommand(),
			deleteScheduleCommand(),
			runOnceCommand(),
		},
	}
}

func newTemporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("task-queue"),
		nil,
		newLogger(c),
	)
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "limit",
		Usage: fmt.Sprintf("Activity feed size per run (1-%d)", config.MaxActivityLimit),
		Value: market.DefaultActivityLimit,
	}
}

func refreshInput(c *cli.Context) (temporal.RefreshMarketInput, error) {
	limit := c.Int("limit")
	if limit < 1 || limit > config.MaxActivityLimit {
		return temporal.RefreshMarketInput{}, fmt.Errorf("limit must be between 1 and %d", config.MaxActivityLimit)
	}
	return temporal.RefreshMarketInput{ActivityLimit: limit}, nil
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-schedule",
		Usage: "Create or update the market refresh schedule",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Refresh interval",
				Value: time.Minute,
			},
			limitFlag(),
		},
		Action: func(c *cli.Context) error {
			interval := c.Duration("interval")
			if interval < config.MinRefreshInterval {
				return fmt.Errorf("interval must be at least %s", config.MinRefreshInterval)
			}
			input, err := refreshInput(c)
			if err != nil {
				return err
			}

			tc, err := newTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.UpsertRefreshSchedule(c.Context, interval, input); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Schedule %s refreshes every %s\n", temporal.RefreshScheduleID, interval)
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "describe-schedule",
		Usage: "Show the refresh schedule and its recent runs",
		Action: func(c *cli.Context) error {
			tc, err := newTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			handle := tc.SDKClient().ScheduleClient().GetHandle(c.Context, temporal.RefreshScheduleID)
			desc, err := handle.Describe(c.Context)
			if err != nil {
				return fmt.Errorf("failed to describe schedule: %w", err)
			}

			var intervals []string
			for _, iv := range desc.Schedule.Spec.Intervals {
				intervals = append(intervals, iv.Every.String())
			}
			nextRuns := desc.Info.NextActionTimes

			if wantJSON(c) {
				return printJSON(c, map[string]interface{}{
					"schedule_id":  temporal.RefreshScheduleID,
					"intervals":    intervals,
					"paused":       desc.Schedule.State.Paused,
					"num_actions":  desc.Info.NumActions,
					"next_actions": nextRuns,
				})
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Schedule:   %s\n", temporal.RefreshScheduleID)
			fmt.Fprintf(w, "Intervals:  %v\n", intervals)
			fmt.Fprintf(w, "Paused:     %t\n", desc.Schedule.State.Paused)
			fmt.Fprintf(w, "Runs:       %d\n", desc.Info.NumActions)
			for _, next := range nextRuns {
				fmt.Fprintf(w, "Next:       %s\n", next.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-schedule",
		Usage: "Delete the market refresh schedule",
		Action: func(c *cli.Context) error {
			tc, err := newTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.DeleteRefreshSchedule(c.Context); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Schedule %s deleted\n", temporal.RefreshScheduleID)
			return nil
		},
	}
}

func runOnceCommand() *cli.Command {
	return &cli.Command{
		Name:  "run-once",
		Usage: "Run one market refresh now and wait for the result",
		Flags: []cli.Flag{
			limitFlag(),
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the workflow",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			input, err := refreshInput(c)
			if err != nil {
				return err
			}

			tc, err := newTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			result, err := tc.RunRefresh(ctx, input)
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return printJSON(c, result)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Refreshed at %s\n", result.RefreshedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "  Listings:    %d\n", result.Listings)
			fmt.Fprintf(w, "  Activities:  %d (%s)\n", result.Activities, result.ActivityStatus.Source)
			fmt.Fprintf(w, "  Sales:       %d, volume %s SOL (%s)\n",
				result.Stats.TotalSales, result.Stats.TotalVolume.StringFixed(2), result.StatsStatus.Source)
			if result.ArchiveSkipped {
				fmt.Fprintf(w, "  Archive:     skipped\n")
			} else {
				fmt.Fprintf(w, "  Archive:     %d new, snapshot #%d\n", result.Archived, result.SnapshotID)
			}
			fmt.Fprintf(w, "  Published:   %d\n", result.Published)
			return nil
		},
	}
}
