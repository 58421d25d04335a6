package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solboard",
		Usage: "Solana wallet dashboard CLI",
		Description: `A command-line client for the solboard server.

Use it to inspect the portfolio, NFTs and transaction history of the current
wallet, manage the API key and view-only address, and send SOL.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			portfolioCommand(),
			nftsCommand(),
			transactionsCommand(),
			networkCommand(),
			refreshCommand(),
			keyCommands(),
			viewCommands(),
			walletCommands(),
			sendCommand(),
			streamCommand(),
			healthCommand(),
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "solboard server URL",
				EnvVars: []string{"SOLBOARD_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Filter the JSON output with a jq expression",
			},
		},
	}
}
