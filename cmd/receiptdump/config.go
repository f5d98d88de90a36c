package main

import (
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/morph-l2/chaindb-reader/internal/debug"
	"github.com/morph-l2/chaindb-reader/reader"
)

var dumpConfigCommand = cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "",
	Description: `The dumpconfig command shows configuration values.`,
}

// makeConfig loads the config file, if any, and applies the command line
// flags on top of it.
func makeConfig(ctx *cli.Context) (reader.Config, error) {
	cfg := reader.Defaults
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := reader.LoadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.GlobalIsSet(networkFlag.Name) {
		cfg.Network = ctx.GlobalString(networkFlag.Name)
	}
	if ctx.GlobalIsSet(chainConfigFlag.Name) {
		cfg.ChainConfigFile = ctx.GlobalString(chainConfigFlag.Name)
	}
	if ctx.GlobalIsSet(ancientFlag.Name) {
		cfg.AncientDir = ctx.GlobalString(ancientFlag.Name)
	}
	if ctx.GlobalIsSet(cacheFlag.Name) {
		cfg.DatabaseCache = ctx.GlobalInt(cacheFlag.Name)
	}
	debug.ApplyFlags(ctx, &cfg.Log)
	return cfg, nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := reader.MarshalConfig(&cfg)
	if err != nil {
		return err
	}
	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}
