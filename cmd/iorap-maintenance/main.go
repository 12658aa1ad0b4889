/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// iorap-maintenance runs one background-maintenance pass (spec.md §4.8):
// compile pending raw traces into prefetch plans, refresh stale package
// versions, or both. Invoked on a schedule by Android's JobScheduler against
// the same on-disk database iorapd itself uses.
package main

import (
	"context"
	"os"
	"time"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iorap-project/iorapd/config"
	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/launch"
	"github.com/iorap-project/iorapd/pkg/maintenance"
	"github.com/iorap-project/iorapd/pkg/store"
)

func main() {
	var (
		rootDir        string
		logLevel       string
		packageName    string
		version        int
		recompile      bool
		outputText     bool
		inodeTextcache string
		verbose        bool
		refreshOnly    bool
		timeoutMillis  int
	)

	app := &cli.App{
		Name:  "iorap-maintenance",
		Usage: "run one iorapd background maintenance pass",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Value: constant.DefaultRootDir, Destination: &rootDir},
			&cli.StringFlag{Name: "log-level", Value: constant.DefaultLogLevel, Destination: &logLevel},
			&cli.StringFlag{Name: "package", Usage: "compile only this package (all installed versions); default compiles every package on device", Destination: &packageName},
			&cli.IntFlag{Name: "version", Usage: "compile only this package version; requires --package", Destination: &version},
			&cli.BoolFlag{Name: "recompile", Usage: "recompile even if an up to date compiled trace already exists", Destination: &recompile},
			&cli.BoolFlag{Name: "output-text", Usage: "also write the diagnostic text rendering alongside the compiled-trace protobuf", Destination: &outputText},
			&cli.StringFlag{Name: "inode-textcache", Usage: "text-cache path passed through to the compiler child", Destination: &inodeTextcache},
			&cli.BoolFlag{Name: "verbose", Destination: &verbose},
			&cli.BoolFlag{Name: "refresh-only", Usage: "only drop stale package rows, don't invoke the compiler", Destination: &refreshOnly},
			&cli.IntFlag{Name: "compiler-timeout-ms", Usage: "0 uses config.PropertyStore's compiler_timeout_ms", Destination: &timeoutMillis},
		},
		Action: func(c *cli.Context) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)

			ctx := context.Background()

			db, err := store.NewDatabase(rootDir)
			if err != nil {
				return errors.Wrap(err, "open database")
			}
			defer db.Close()

			var cfg config.Config
			properties := config.NewPropertyStore(cfg.Properties)

			// No Android binder client in this port (see
			// pkg/launch.VersionLookup); package versions can't be refreshed
			// against the live package manager from this standalone binary.
			versions := launch.StaticVersionLookup{}
			if err := maintenance.RefreshPackageVersions(db, versions); err != nil {
				log.G(ctx).Warnf("iorap-maintenance: refresh package versions: %v", err)
			}
			if refreshOnly {
				return nil
			}

			ctl := maintenance.NewController(db, properties)
			params := maintenance.Params{
				Recompile:      recompile,
				OutputText:     outputText,
				InodeTextcache: inodeTextcache,
				Verbose:        verbose,
				RootDir:        rootDir,
			}
			if timeoutMillis > 0 {
				params.CompilerTimeout = time.Duration(timeoutMillis) * time.Millisecond
			}

			switch {
			case packageName != "" && c.IsSet("version"):
				return ctl.CompilePackage(ctx, packageName, version, params)
			case packageName != "":
				return ctl.CompileSingleAppOnDevice(ctx, packageName, params)
			default:
				return ctl.CompileAppsOnDevice(ctx, params)
			}
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("iorap-maintenance exited with error")
	}
}
