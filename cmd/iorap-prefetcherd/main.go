/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// iorap-prefetcherd hosts the prefetch session engine out-of-process,
// listening on an AF_UNIX control socket and dispatching every connection's
// command stream against a single shared Engine (spec.md §4.4/§4.5's
// out-of-process split).
package main

import (
	"context"
	"net"
	"os"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/control"
	"github.com/iorap-project/iorapd/pkg/prefetcher"
)

func main() {
	var (
		address  string
		logLevel string
	)
	app := &cli.App{
		Name:  "iorap-prefetcherd",
		Usage: "out-of-process prefetch session engine helper for iorapd",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "address",
				Usage:       "control-protocol AF_UNIX socket path to listen on",
				Value:       constant.DefaultAddress,
				Destination: &address,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Value:       constant.DefaultLogLevel,
				Destination: &logLevel,
			},
		},
		Action: func(c *cli.Context) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			return run(c.Context, address)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("iorap-prefetcherd exited with error")
	}
}

func run(ctx context.Context, address string) error {
	if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove stale socket %s", address)
	}

	listener, err := net.Listen("unix", address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", address)
	}
	defer listener.Close()

	log.G(ctx).Infof("iorap-prefetcherd listening on %s, pid %d", address, os.Getpid())

	engine := prefetcher.New()

	for {
		conn, err := listener.Accept()
		if err != nil {
			return errors.Wrap(err, "accept connection")
		}
		go serveConn(ctx, conn.(*net.UnixConn), engine)
	}
}

// serveConn drives one peer's command stream against engine until it
// disconnects, an Exit command arrives, or ctx is cancelled. A stale
// connection does not tear engine's sessions down; only an explicit Exit
// command does (spec.md §4.4 "Exit — child terminates cleanly").
func serveConn(ctx context.Context, conn *net.UnixConn, engine *prefetcher.Engine) {
	defer conn.Close()

	dispatcher := prefetcher.NewDispatcher(engine, prefetcher.ParseStrategy(""))
	dec := control.NewSocketDecoder(conn)

	err := control.Serve(ctx, dec, conn.Close, func(cmd control.Command) error {
		err := dispatcher.Dispatch(ctx, cmd)
		if err == prefetcher.ErrExit {
			return err
		}
		if err != nil {
			log.G(ctx).Warnf("iorap-prefetcherd: command %s failed: %v", cmd.Variant, err)
		}
		return nil
	})
	if err != nil && err != prefetcher.ErrExit {
		log.G(ctx).Warnf("iorap-prefetcherd: connection serve loop ended: %v", err)
	}
}
