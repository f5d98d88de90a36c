// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package debug configures logging for the reader binaries, either from
// command line flags or from a LogConfig loaded out of a config file.
package debug

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/urfave/cli.v1"
)

// LogConfig holds the logging settings.
type LogConfig struct {
	Verbosity int // 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail
	Vmodule   string `toml:",omitempty"`
	JSON      bool

	// File enables writing logs to a rotated file next to stderr.
	File     string `toml:",omitempty"`
	MaxSize  int    // megabytes
	MaxAge   int    // days
	Compress bool
}

// DefaultLogConfig contains the default logging settings.
var DefaultLogConfig = LogConfig{
	Verbosity: 3,
	MaxSize:   100,
	MaxAge:    30,
}

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: DefaultLogConfig.Verbosity,
	}
	vmoduleFlag = cli.StringFlag{
		Name:  "vmodule",
		Usage: "Per-module verbosity: comma-separated list of <pattern>=<level> (e.g. reader/*=5)",
		Value: "",
	}
	logjsonFlag = cli.BoolFlag{
		Name:  "log.json",
		Usage: "Format logs with JSON",
	}
	logFilenameFlag = cli.StringFlag{
		Name:  "log.filename",
		Usage: "The target file for writing logs, backup log files will be retained in the same directory.",
	}
	logFileMaxSizeFlag = cli.IntFlag{
		Name:  "log.maxsize",
		Usage: "The maximum size in megabytes of the log file before it gets rotated. It is used only when log.filename is provided.",
		Value: DefaultLogConfig.MaxSize,
	}
	logMaxAgeFlag = cli.IntFlag{
		Name:  "log.maxage",
		Usage: "The maximum number of days to retain old log files based on the timestamp encoded in their filename. It is used only when log.filename is provided.",
		Value: DefaultLogConfig.MaxAge,
	}
	logCompressFlag = cli.BoolFlag{
		Name:  "log.compress",
		Usage: "Compress determines if the rotated log files should be compressed using gzip. It is used only when log.filename is provided.",
	}
)

// Flags holds all command-line flags required for logging.
var Flags = []cli.Flag{
	verbosityFlag,
	vmoduleFlag,
	logjsonFlag,
	logFilenameFlag,
	logFileMaxSizeFlag,
	logMaxAgeFlag,
	logCompressFlag,
}

// ApplyFlags overrides cfg with the logging flags set on the command line.
func ApplyFlags(ctx *cli.Context, cfg *LogConfig) {
	if ctx.GlobalIsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.GlobalInt(verbosityFlag.Name)
	}
	if ctx.GlobalIsSet(vmoduleFlag.Name) {
		cfg.Vmodule = ctx.GlobalString(vmoduleFlag.Name)
	}
	if ctx.GlobalIsSet(logjsonFlag.Name) {
		cfg.JSON = ctx.GlobalBool(logjsonFlag.Name)
	}
	if ctx.GlobalIsSet(logFilenameFlag.Name) {
		cfg.File = ctx.GlobalString(logFilenameFlag.Name)
	}
	if ctx.GlobalIsSet(logFileMaxSizeFlag.Name) {
		cfg.MaxSize = ctx.GlobalInt(logFileMaxSizeFlag.Name)
	}
	if ctx.GlobalIsSet(logMaxAgeFlag.Name) {
		cfg.MaxAge = ctx.GlobalInt(logMaxAgeFlag.Name)
	}
	if ctx.GlobalIsSet(logCompressFlag.Name) {
		cfg.Compress = ctx.GlobalBool(logCompressFlag.Name)
	}
}

// Setup installs the root log handler described by cfg.
func Setup(cfg LogConfig) error {
	handler, err := newHandler(cfg, os.Stderr)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(handler))
	return nil
}

func newHandler(cfg LogConfig, stderr *os.File) (slog.Handler, error) {
	var (
		output   = io.Writer(stderr)
		usecolor bool
	)
	if !cfg.JSON {
		usecolor = (isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd())) && os.Getenv("TERM") != "dumb"
		if usecolor {
			output = colorable.NewColorable(stderr)
		}
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_RDWR, os.FileMode(0600))
		if err != nil {
			return nil, fmt.Errorf("wrong log file set: %v", err)
		}
		f.Close()

		if cfg.MaxSize < 1 {
			return nil, fmt.Errorf("wrong log max size set: %d", cfg.MaxSize)
		}
		if cfg.MaxAge < 1 {
			return nil, fmt.Errorf("wrong log max age set: %d", cfg.MaxAge)
		}
		logFile := &lumberjack.Logger{
			Filename: cfg.File,
			MaxSize:  cfg.MaxSize, // megabytes
			MaxAge:   cfg.MaxAge,  // days
			Compress: cfg.Compress,
		}
		output = io.MultiWriter(output, logFile)
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = log.JSONHandler(output)
	} else {
		handler = log.NewTerminalHandler(output, usecolor)
	}
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(log.FromLegacyLevel(cfg.Verbosity))
	if err := glogger.Vmodule(cfg.Vmodule); err != nil {
		return nil, fmt.Errorf("wrong vmodule set: %v", err)
	}
	return glogger, nil
}
