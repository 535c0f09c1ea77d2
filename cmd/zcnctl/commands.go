package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"zcnsdk/sdk"
)

var networkCmd = &cli.Command{
	Name:  "network",
	Usage: "Print the miners and sharders of the network",
	Action: func(cctx *cli.Context) error {
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		n, err := c.Network(cctx.Context)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		for _, m := range n.Miners {
			_, _ = fmt.Fprintf(tw, "miner\t%s\n", m)
		}
		for _, s := range n.Sharders {
			_, _ = fmt.Fprintf(tw, "sharder\t%s\n", s)
		}
		return tw.Flush()
	},
}

var balanceCmd = &cli.Command{
	Name:      "balance",
	Usage:     "Print the balance of a client",
	ArgsUsage: "[client id]",
	Action: func(cctx *cli.Context) error {
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		b, err := c.GetBalance(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Printf("Client:  %s\n", b.ClientID)
		fmt.Printf("Balance: %s ZCN (%s SAS)\n", humanize.FtoaWithDigits(sdk.SASToZCN(b.Balance), 10), humanize.Comma(b.Balance))
		fmt.Printf("Nonce:   %d\n", b.Nonce)
		return nil
	},
}

var sendCmd = &cli.Command{
	Name:  "send",
	Usage: "Transfer tokens to another client",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "to", Usage: "recipient client id", Required: true},
		&cli.Float64Flag{Name: "amount", Usage: "amount in ZCN", Required: true},
		&cli.StringFlag{Name: "note", Usage: "transaction data"},
		&cli.BoolFlag{Name: "wait", Usage: "wait for the transaction to be confirmed"},
	},
	Action: func(cctx *cli.Context) error {
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		resp, err := c.SendTransaction(cctx.Context, cctx.String("to"), sdk.ZCNToSAS(cctx.Float64("amount")), cctx.String("note"))
		if err != nil {
			return err
		}
		fmt.Printf("Submitted %s (nonce %d)\n", resp.Hash, c.Nonce())
		if !cctx.Bool("wait") {
			return nil
		}
		return printConfirmation(cctx, c, resp.Hash)
	},
}

var confirmCmd = &cli.Command{
	Name:      "confirm",
	Usage:     "Wait for a transaction to be confirmed",
	ArgsUsage: "<hash>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a transaction hash")
		}
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		return printConfirmation(cctx, c, cctx.Args().First())
	},
}

var blockCmd = &cli.Command{
	Name:  "block",
	Usage: "Print the latest finalized block",
	Action: func(cctx *cli.Context) error {
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		b, err := c.GetLatestFinalizedBlock(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Printf("Round: %s\n", humanize.Comma(b.Round))
		fmt.Printf("Hash:  %s\n", b.Hash)
		if b.CreationDate > 0 {
			fmt.Printf("Time:  %s\n", humanize.Time(time.Unix(b.CreationDate, 0)))
		}
		return nil
	},
}

var statsCmd = &cli.Command{
	Name:  "stats",
	Usage: "Print chain statistics",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "any-miner", Usage: "ask a single random miner instead of the sharders"},
	},
	Action: func(cctx *cli.Context) error {
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		var raw json.RawMessage
		if cctx.Bool("any-miner") {
			raw, err = c.GetFromRandomMiner(cctx.Context, sdk.PathChainStats, nil)
		} else {
			raw, err = c.GetChainStats(cctx.Context)
		}
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var scCmd = &cli.Command{
	Name:  "sc",
	Usage: "Execute a smart contract method",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "address", Usage: "smart contract address", Required: true},
		&cli.StringFlag{Name: "method", Usage: "method name", Required: true},
		&cli.StringFlag{Name: "input", Usage: "JSON input", Value: "{}"},
		&cli.Float64Flag{Name: "value", Usage: "tokens to lock, in ZCN"},
	},
	Action: func(cctx *cli.Context) error {
		var input any
		if err := json.Unmarshal([]byte(cctx.String("input")), &input); err != nil {
			return xerrors.Errorf("parse --input: %w", err)
		}

		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		resp, err := c.ExecuteSmartContract(cctx.Context, cctx.String("address"), cctx.String("method"), input, sdk.ZCNToSAS(cctx.Float64("value")))
		if err != nil {
			return err
		}
		fmt.Printf("Submitted %s (nonce %d)\n", resp.Hash, c.Nonce())
		return nil
	},
}

var allocationsCmd = &cli.Command{
	Name:  "allocations",
	Usage: "List the wallet's allocations through the storage engine",
	Action: func(cctx *cli.Context) error {
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		e, err := c.Engine(cctx.Context)
		if err != nil {
			return err
		}
		raw, err := e.ListAllocations(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

func printConfirmation(cctx *cli.Context, c *sdk.Client, hash string) error {
	conf, err := c.VerifyTransaction(cctx.Context, hash)
	if err != nil {
		return err
	}
	fmt.Printf("Confirmed %s\n", conf.Hash)
	fmt.Printf("  block %s at round %s\n", conf.BlockHash, humanize.Comma(conf.Round))
	if conf.CreationDate > 0 {
		fmt.Printf("  created %s\n", humanize.Time(time.Unix(conf.CreationDate, 0)))
	}
	return nil
}

func printJSON(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return xerrors.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
