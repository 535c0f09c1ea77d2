// Command zcnctl reads chain state and submits transactions against a
// storage network.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"zcnsdk/internal/config"
	"zcnsdk/internal/signer"
	"zcnsdk/sdk"
)

var log = logging.Logger("zcnctl")

var (
	configFlag = &cli.StringFlag{
		Name:      "config",
		Usage:     "path to a TOML config file",
		EnvVars:   []string{"ZCN_CONFIG"},
		TakesFile: true,
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "log level of the zcn subsystems",
		EnvVars: []string{"ZCN_LOG_LEVEL"},
		Value:   "warn",
	}
	walletSeedFlag = &cli.StringFlag{
		Name:    "wallet-seed",
		Usage:   "hex seed (at least 32 bytes) of the BLS wallet key",
		EnvVars: []string{"ZCN_WALLET_SEED"},
	}
)

func main() {
	app := &cli.App{
		Name:  "zcnctl",
		Usage: "query and transact on a storage network",
		Description: `zcnctl asks every sharder for chain state and prints what enough of
   them agree on. Transactions are signed with the wallet derived from
   --wallet-seed and broadcast to every miner.

   The network is taken from the config file, ZCN_* environment variables
   (ZCN_DOMAIN, ZCN_MINERS, ZCN_SHARDERS, ...) or both.`,
		Flags: []cli.Flag{configFlag, logLevelFlag, walletSeedFlag},
		Before: func(cctx *cli.Context) error {
			return setLogLevel(cctx.String(logLevelFlag.Name))
		},
		Commands: []*cli.Command{
			networkCmd,
			balanceCmd,
			sendCmd,
			confirmCmd,
			blockCmd,
			statsCmd,
			scCmd,
			allocationsCmd,
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setLogLevel(level string) error {
	for _, sub := range []string{"zcnctl", "zcn/sdk", "zcn/consensus", "zcn/txn", "zcn/directory", "zcn/engine", "zcn/fanout"} {
		if err := logging.SetLogLevel(sub, level); err != nil {
			return xerrors.Errorf("set log level %q: %w", level, err)
		}
	}
	return nil
}

// newClient builds a client from the global flags. The wallet is optional
// for read-only commands.
func newClient(cctx *cli.Context) (*sdk.Client, error) {
	cfg, err := config.Load(cctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}

	var opts []sdk.Option
	if seed := cctx.String(walletSeedFlag.Name); seed != "" {
		ikm, err := hex.DecodeString(seed)
		if err != nil {
			return nil, xerrors.Errorf("decode wallet seed: %w", err)
		}
		s, err := signer.NewBLSSigner(ikm)
		if err != nil {
			return nil, err
		}
		w := signer.NewWallet(s)
		log.Debugw("using wallet", "client", w.ClientID)
		opts = append(opts, sdk.WithWallet(w))
	}
	return sdk.New(cfg, opts...)
}
