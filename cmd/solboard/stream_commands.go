package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solboard/service/nats"
	"github.com/urfave/cli/v2"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream wallet activity as it is classified",
		ArgsUsage: "[wallet_address]",
		Action: func(c *cli.Context) error {
			wallet := c.Args().First()
			jsonOutput := c.Bool("json")

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if !jsonOutput {
				if wallet != "" {
					fmt.Fprintf(os.Stderr, "Streaming activity for wallet: %s (Ctrl+C to stop)\n\n", wallet)
				} else {
					fmt.Fprintf(os.Stderr, "Streaming activity for all wallets (Ctrl+C to stop)\n\n")
				}
			}

			err := newClient(c).StreamActivity(ctx, wallet, func(ev nats.ActivityEvent) error {
				return printActivity(c.App.Writer, ev, jsonOutput)
			})
			if ctx.Err() != nil && c.Context.Err() == nil {
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "\nDisconnected\n")
				}
				return nil
			}
			return err
		},
	}
}

// printActivity writes one event as a JSON line or a readable block.
func printActivity(w io.Writer, ev nats.ActivityEvent, jsonOutput bool) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(ev)
	}

	fmt.Fprintln(w, "────────────────────────────────────────────────────────")
	fmt.Fprintf(w, "Signature: %s\n", ev.Signature)
	fmt.Fprintf(w, "Wallet:    %s\n", ev.Wallet)
	fmt.Fprintf(w, "Type:      %s\n", ev.Type)
	fmt.Fprintf(w, "Action:    %s\n", ev.Action)
	if ev.Amount != "" {
		fmt.Fprintf(w, "Amount:    %s\n", ev.Amount)
	}
	fmt.Fprintf(w, "Fee:       %s\n", ev.Fee)
	fmt.Fprintf(w, "Status:    %s\n", ev.Status)
	if !ev.BlockTime.IsZero() {
		fmt.Fprintf(w, "Time:      %s\n", ev.BlockTime.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
	return nil
}

