/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/iorap-project/iorapd/config"
	"github.com/iorap-project/iorapd/internal/flags"
	"github.com/iorap-project/iorapd/internal/logging"
	"github.com/iorap-project/iorapd/pkg/launch"
	"github.com/iorap-project/iorapd/pkg/metrics"
	"github.com/iorap-project/iorapd/pkg/metrics/registry"
	prefetchermetrics "github.com/iorap-project/iorapd/pkg/prefetcher/metrics"
	"github.com/iorap-project/iorapd/pkg/store"
)

// Version, Reversion, GoVersion and BuildTimestamp are set by the release
// build's -ldflags, matching the teacher's cmd/containerd-nydus-grpc idiom.
var (
	Version        = "unknown"
	Reversion      = "unknown"
	GoVersion      = "unknown"
	BuildTimestamp = "unknown"
)

func main() {
	f := flags.NewFlags()
	app := &cli.App{
		Name:        "iorapd",
		Usage:       "Android I/O readahead prefetch daemon",
		Version:     Version,
		Flags:       f.F,
		HideVersion: true,
		Action: func(_ *cli.Context) error {
			if f.Args.PrintVersion {
				fmt.Println("Version:    ", Version)
				fmt.Println("Reversion:  ", Reversion)
				fmt.Println("Go version: ", GoVersion)
				fmt.Println("Build time: ", BuildTimestamp)
				return nil
			}
			return run(f.Args)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("iorapd exited with error")
	}
}

func run(args *flags.Args) error {
	var cfg config.Config
	if err := config.LoadConfig(args.ConfigPath, &cfg); err != nil {
		return errors.Wrap(err, "load configuration")
	}
	if err := config.ParseParameters(args, &cfg); err != nil {
		return errors.Wrap(err, "apply command line flags")
	}
	if err := cfg.FillupWithDefaults(); err != nil {
		return errors.Wrap(err, "fill default configuration")
	}
	if err := config.ProcessConfigurations(&cfg); err != nil {
		return errors.Wrap(err, "process configuration")
	}
	if err := logging.SetUp(cfg.LogLevel, cfg.LogToStdout, cfg.LogDir, cfg.RotateLogArgs()); err != nil {
		return errors.Wrap(err, "set up logging")
	}

	ctx := logging.WithContext()
	log.G(ctx).Infof("iorapd starting, pid %d, version %s", os.Getpid(), Version)

	db, err := store.NewDatabase(config.GetDBDir())
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer db.Close()

	properties := config.NewPropertyStore(cfg.Properties)

	registry.Register(prefetchermetrics.Collectors()...)
	if cfg.MetricsAddress != "" {
		go func() {
			if err := metrics.NewMetricsHTTPListener(cfg.MetricsAddress); err != nil {
				log.G(ctx).WithError(err).Warn("metrics HTTP listener stopped")
			}
		}()
	}

	engine, closeEngine, err := setUpSessionEngine(ctx, args, &cfg, properties)
	if err != nil {
		return errors.Wrap(err, "set up prefetch session engine")
	}
	defer closeEngine()

	// No Android binder client exists in this port (pkg/launch.VersionLookup's
	// doc comment), so the pipeline gets an empty StaticVersionLookup: no
	// package version is known, and none is read from the config file.
	versions := launch.StaticVersionLookup{}

	pipeline := launch.NewPipeline(db, engine, properties, versions, nil, cfg.RootDir)
	defer pipeline.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.G(ctx).Infof("iorapd received signal %s, shutting down", sig)
	return nil
}
