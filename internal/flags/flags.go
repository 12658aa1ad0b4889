/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package flags

import (
	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/urfave/cli/v2"
)

type Args struct {
	RootDir          string
	SocketPath       string
	ConfigPath       string
	PrefetcherPath   string
	OutOfProcess     bool
	LogLevel         string
	LogToStdout      bool
	LogToStdoutCount int
	PrintVersion     bool
}

type Flags struct {
	Args *Args
	F    []cli.Flag
}

func buildFlags(args *Args) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "root",
			Usage:       "directory to store iorapd's database, raw traces and compiled traces",
			Destination: &args.RootDir,
			DefaultText: constant.DefaultRootDir,
		},
		&cli.StringFlag{
			Name:        "address",
			Usage:       "control-protocol AF_UNIX socket path to the prefetch helper",
			Destination: &args.SocketPath,
			DefaultText: constant.DefaultAddress,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to iorapd configuration (such as: config.toml)",
			Destination: &args.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "prefetcherd",
			Usage:       "path to the prefetcher helper binary, default to search in $PATH",
			Destination: &args.PrefetcherPath,
		},
		&cli.BoolFlag{
			Name:        "out-of-process",
			Usage:       "force the prefetch session engine into its own process over the control socket",
			Destination: &args.OutOfProcess,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level, possible values: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
			Destination: &args.LogLevel,
			DefaultText: constant.DefaultLogLevel,
		},
		&cli.BoolFlag{
			Name:        "log-to-stdout",
			Usage:       "print log messages to standard output",
			Destination: &args.LogToStdout,
			Count:       &args.LogToStdoutCount,
		},
		&cli.BoolFlag{
			Name:        "version",
			Usage:       "print version and build information",
			Destination: &args.PrintVersion,
		},
	}
}

func NewFlags() *Flags {
	var args Args
	return &Flags{
		Args: &args,
		F:    buildFlags(&args),
	}
}
