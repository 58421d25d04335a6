package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/brojonat/solboard/client"
	"github.com/brojonat/solboard/service/dashboard"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/brojonat/solboard/service/solana"
	"github.com/urfave/cli/v2"
)

func portfolioCommand() *cli.Command {
	return &cli.Command{
		Name:  "portfolio",
		Usage: "Show token holdings and portfolio value",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "search",
				Aliases: []string{"q"},
				Usage:   "Only show tokens whose name or symbol contains this text",
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			v, err := cl.Dashboard(c.Context)
			if err != nil {
				return err
			}

			tokens := v.Tokens
			if q := c.String("search"); q != "" {
				if tokens, err = cl.Tokens(c.Context, q); err != nil {
					return err
				}
			}

			out := struct {
				Wallet     string                      `json:"wallet"`
				TotalValue float64                     `json:"total_value"`
				Change24h  float64                     `json:"change_24h"`
				Tokens     []portfolio.ValuedToken     `json:"tokens"`
				Allocation []portfolio.AllocationSlice `json:"allocation"`
				Gainers    []portfolio.ValuedToken     `json:"gainers"`
				Losers     []portfolio.ValuedToken     `json:"losers"`
			}{v.Wallet, v.TotalValue, v.Change24h, tokens, v.Allocation, v.Gainers, v.Losers}

			return render(c, out, func(w io.Writer) {
				printHeader(w, v)
				fmt.Fprintf(w, "Total value: %s (%s 24h)\n\n", usd(v.TotalValue), pct(v.Change24h))

				tw := newTable(w)
				fmt.Fprintln(tw, "SYMBOL\tNAME\tBALANCE\tPRICE\tVALUE\t24H")
				for _, t := range tokens {
					fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t%s\t%s\n", t.Symbol, t.Name, t.Balance, usd(t.Price), usd(t.Value), pct(t.Change24h))
				}
				tw.Flush()

				if len(v.Allocation) > 0 {
					fmt.Fprintln(w, "\nAllocation:")
					for _, s := range v.Allocation {
						fmt.Fprintf(w, "  %-8s %s\n", s.Name, usd(s.Value))
					}
				}
			})
		},
	}
}

func nftsCommand() *cli.Command {
	return &cli.Command{
		Name:  "nfts",
		Usage: "List NFTs held by the wallet",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "group",
				Usage: "Group NFTs by collection",
			},
		},
		Action: func(c *cli.Context) error {
			v, err := newClient(c).Dashboard(c.Context)
			if err != nil {
				return err
			}

			if c.Bool("group") {
				groups := portfolio.GroupByCollection(v.NFTs)
				return render(c, groups, func(w io.Writer) {
					names := make([]string, 0, len(groups))
					for name := range groups {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						fmt.Fprintf(w, "%s (%d)\n", collectionLabel(name), len(groups[name]))
						for _, n := range groups[name] {
							fmt.Fprintf(w, "  %s\n", n.Name)
						}
					}
				})
			}

			return render(c, v.NFTs, func(w io.Writer) {
				if len(v.NFTs) == 0 {
					fmt.Fprintln(w, "No NFTs found.")
					return
				}
				tw := newTable(w)
				fmt.Fprintln(tw, "NAME\tCOLLECTION\tID")
				for _, n := range v.NFTs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", n.Name, collectionLabel(n.Collection), solana.ShortAddress(n.ID))
				}
				tw.Flush()
			})
		},
	}
}

func collectionLabel(name string) string {
	if name == "" {
		return "-"
	}
	return name
}

func transactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "transactions",
		Aliases: []string{"txs"},
		Usage:   "List classified transactions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Filter by type: all, send, receive, swap, stake, unstake, unknown",
				Value:   "all",
			},
			&cli.StringFlag{
				Name:    "search",
				Aliases: []string{"q"},
				Usage:   "Filter by signature, type or description",
			},
			&cli.BoolFlag{
				Name:  "more",
				Usage: "Load the next page of history first",
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			if c.Bool("more") {
				if _, err := cl.FetchMore(c.Context); err != nil {
					return err
				}
			}

			resp, err := cl.Transactions(c.Context, c.String("type"), c.String("search"))
			if err != nil {
				return err
			}

			return render(c, resp, func(w io.Writer) {
				printTransactions(w, resp)
			})
		},
	}
}

func printTransactions(w io.Writer, resp *client.TransactionsResponse) {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tTYPE\tACTION\tAMOUNT\tFEE\tSTATUS\tSIGNATURE")
	for _, tx := range resp.Transactions {
		ts := "-"
		if tx.Timestamp > 0 {
			ts = time.Unix(tx.Timestamp, 0).UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ts, tx.Type, tx.Action, tx.Amount, tx.Fee, tx.Status, solana.ShortAddress(tx.Signature))
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d shown; %d confirmed, %d failed, %d pending",
		len(resp.Transactions), resp.StatusCounts.Confirmed, resp.StatusCounts.Failed, resp.StatusCounts.Pending)
	if resp.HasMore {
		fmt.Fprint(w, " (more available: use --more)")
	}
	fmt.Fprintln(w)
}

func networkCommand() *cli.Command {
	return &cli.Command{
		Name:  "network",
		Usage: "Show Solana network status",
		Action: func(c *cli.Context) error {
			status, err := newClient(c).Network(c.Context)
			if err != nil {
				return err
			}
			return render(c, status, func(w io.Writer) {
				fmt.Fprintf(w, "Epoch:        %d (%.2f%%)\n", status.Epoch, status.EpochProgress)
				fmt.Fprintf(w, "Slot:         %d (%d/%d in epoch)\n", status.AbsoluteSlot, status.SlotIndex, status.SlotsInEpoch)
				fmt.Fprintf(w, "Block height: %d\n", status.BlockHeight)
				fmt.Fprintf(w, "Transactions: %sB\n", status.TransactionCountBillions)
			})
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Reload holdings, NFTs and transactions",
		Action: func(c *cli.Context) error {
			v, err := newClient(c).Refresh(c.Context)
			if err != nil {
				return err
			}
			return render(c, v, func(w io.Writer) {
				printHeader(w, v)
				fmt.Fprintf(w, "%d tokens, %d NFTs, %d transactions, total %s\n",
					len(v.Tokens), len(v.NFTs), len(v.Transactions), usd(v.TotalValue))
			})
		},
	}
}

func printHeader(w io.Writer, v *dashboard.View) {
	mode := "wallet"
	if v.IsViewOnly {
		mode = "view-only"
	}
	wallet := v.Wallet
	if wallet == "" {
		wallet = "(none)"
	}
	fmt.Fprintf(w, "Wallet: %s [%s]\n", wallet, mode)
	if v.Error != "" {
		fmt.Fprintf(w, "Error:  %s\n", v.Error)
	}
	if v.LastSync != nil {
		fmt.Fprintf(w, "Synced: %s\n", v.LastSync.Format(time.RFC3339))
	}
}
