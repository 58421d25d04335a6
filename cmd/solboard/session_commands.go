package main

import (
	"fmt"
	"io"

	"github.com/brojonat/solboard/client"
	"github.com/brojonat/solboard/service/dashboard"
	"github.com/urfave/cli/v2"
)

func keyCommands() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "Manage the Helius API key",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Validate and save an API key",
				ArgsUsage: "API_KEY",
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if key == "" {
						return fmt.Errorf("API_KEY is required")
					}
					return sessionAction(c, func(cl *client.Client) (*dashboard.View, error) {
						return cl.SetAPIKey(c.Context, key)
					}, "API key saved")
				},
			},
			{
				Name:  "clear",
				Usage: "Remove the saved API key",
				Action: func(c *cli.Context) error {
					return sessionAction(c, func(cl *client.Client) (*dashboard.View, error) {
						return cl.ClearAPIKey(c.Context)
					}, "API key cleared")
				},
			},
		},
	}
}

func viewCommands() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "Manage view-only mode",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Watch an address without a wallet",
				ArgsUsage: "ADDRESS",
				Action: func(c *cli.Context) error {
					address := c.Args().First()
					if address == "" {
						return fmt.Errorf("ADDRESS is required")
					}
					return sessionAction(c, func(cl *client.Client) (*dashboard.View, error) {
						return cl.SetViewOnly(c.Context, address)
					}, "view-only mode enabled")
				},
			},
			{
				Name:  "clear",
				Usage: "Leave view-only mode",
				Action: func(c *cli.Context) error {
					return sessionAction(c, func(cl *client.Client) (*dashboard.View, error) {
						return cl.ClearViewOnly(c.Context)
					}, "view-only mode disabled")
				},
			},
		},
	}
}

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Connect or disconnect the server's wallet",
		Subcommands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Connect the configured wallet keypair",
				Action: func(c *cli.Context) error {
					return sessionAction(c, func(cl *client.Client) (*dashboard.View, error) {
						return cl.Connect(c.Context)
					}, "wallet connected")
				},
			},
			{
				Name:  "disconnect",
				Usage: "Disconnect the wallet",
				Action: func(c *cli.Context) error {
					return sessionAction(c, func(cl *client.Client) (*dashboard.View, error) {
						return cl.Disconnect(c.Context)
					}, "wallet disconnected")
				},
			},
		},
	}
}

func sessionAction(c *cli.Context, call func(*client.Client) (*dashboard.View, error), done string) error {
	v, err := call(newClient(c))
	if err != nil {
		return err
	}
	return render(c, v, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s\n", done)
		printHeader(w, v)
	})
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send SOL from the connected wallet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Recipient address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Amount in SOL, e.g. 0.25",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			sig, err := newClient(c).SendSOL(c.Context, c.String("to"), c.String("amount"))
			if err != nil {
				return err
			}
			out := map[string]string{"signature": sig}
			return render(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Transfer confirmed\n  Signature: %s\n", sig)
			})
		},
	}
}
