package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	natspkg "github.com/brojonat/nftmarket/service/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

func natsCommands() *cli.Command {
	return &cli.Command{
		Name:  "nats",
		Usage: "Activity event stream commands",
		Subcommands: []*cli.Command{
			subscribeCommand(),
			inspectStreamCommand(),
		},
	}
}

// subscribeCommand streams activity events straight from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Subscribe to marketplace activity events",
		Description: `Subscribe to activity events published to NATS JetStream by the refresh worker.
Events are published to the subject: activity.{kind}

Example:
  nftmarket nats subscribe --kind sale --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only receive one kind (mint, list, sale, cancel, transfer)",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "nftmarket-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if kind := c.String("kind"); kind != "" {
				subject = natspkg.SubjectPrefix + kind
			}

			nc, err := natspkg.Connect(c.String("nats-url"), "nftmarket-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			jsonOutput := wantJSON(c)
			if !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "📡 Subscribing to: %s\n", subject)
				fmt.Fprintf(c.App.ErrWriter, "Waiting for activity... (Ctrl-C to exit)\n\n")
			}

			var count atomic.Int64
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				var event natspkg.ActivityEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					fmt.Fprintf(c.App.ErrWriter, "Error parsing event: %v\n", err)
					msg.Ack()
					return
				}
				count.Add(1)
				if jsonOutput {
					if err := printJSON(c, event); err != nil {
						fmt.Fprintf(c.App.ErrWriter, "Error printing event: %v\n", err)
					}
				} else {
					printActivityEvent(c, &event)
				}
				msg.Ack()
			})
			if err != nil {
				return fmt.Errorf("failed to consume: %w", err)
			}

			<-ctx.Done()
			consumeCtx.Stop()
			if !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "\n✅ Received %d events\n", count.Load())
			}
			return nil
		},
	}
}

// inspectStreamCommand shows information about the activity stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the activity JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "nftmarket-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx := context.Background()
			stream, err := js.Stream(ctx, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}
			info, err := stream.Info(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if wantJSON(c) {
				return printJSON(c, info)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Dedup Window: %s\n", info.Config.Duplicates)
			return nil
		},
	}
}
