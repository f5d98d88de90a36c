// receiptdump prints the hydrated receipts of blocks read directly from a
// chain database.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/morph-l2/chaindb-reader/internal/debug"
	"github.com/morph-l2/chaindb-reader/reader"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "Network whose chain configuration derives transaction senders (mainnet, sepolia, holesky)",
	}
	chainConfigFlag = cli.StringFlag{
		Name:  "chainconfig",
		Usage: "JSON chain configuration or genesis file, overrides --network",
	}
	ancientFlag = cli.StringFlag{
		Name:  "datadir.ancient",
		Usage: "Root directory for ancient data (default = inside chaindata)",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Usage: "Megabytes of memory allocated to the database read cache",
		Value: reader.Defaults.DatabaseCache,
	}
	parallelFlag = cli.IntFlag{
		Name:  "parallel",
		Usage: "Number of blocks read concurrently",
		Value: runtime.GOMAXPROCS(0),
	}
	formatFlag = cli.StringFlag{
		Name:  "format",
		Usage: "Output format: json or table",
		Value: formatJSON,
	}
	progressFlag = cli.BoolFlag{
		Name:  "progress",
		Usage: "Show a progress bar on stderr",
	}
)

var app = cli.NewApp()

func init() {
	app.Name = "receiptdump"
	app.Usage = "print the receipts of blocks stored in a chain database"
	app.ArgsUsage = "<chaindata dir> <block hash> [<block hash>...]"
	app.Flags = append([]cli.Flag{
		configFileFlag,
		networkFlag,
		chainConfigFlag,
		ancientFlag,
		cacheFlag,
		parallelFlag,
		formatFlag,
		progressFlag,
	}, debug.Flags...)
	app.Commands = []cli.Command{
		dumpConfigCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		return debug.Setup(cfg.Log)
	}
	app.Action = dumpReceipts
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpReceipts(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return fmt.Errorf("usage: %s %s", app.Name, app.ArgsUsage)
	}
	hashes, err := parseHashes(ctx.Args().Tail())
	if err != nil {
		return err
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	r, err := reader.New(cfg)
	if err != nil {
		return err
	}
	d := &dumper{
		reader:   r,
		db:       ctx.Args().First(),
		parallel: ctx.GlobalInt(parallelFlag.Name),
		format:   ctx.GlobalString(formatFlag.Name),
		bar:      newProgressBar(len(hashes), ctx.GlobalBool(progressFlag.Name)),
	}
	failed, err := d.dump(os.Stdout, hashes)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d blocks could not be read", failed, len(hashes))
	}
	log.Info("Dumped block receipts", "blocks", len(hashes))
	return nil
}
