/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"context"
	"net"
	"time"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/config"
	"github.com/iorap-project/iorapd/internal/flags"
	"github.com/iorap-project/iorapd/pkg/control"
	"github.com/iorap-project/iorapd/pkg/prefetcher"
)

// dialRetryInterval and dialRetryTimeout bound how long iorapd waits for
// iorap-prefetcherd to come up and start listening on the control socket
// (spec.md §4.4's out-of-process split gives no rendezvous protocol beyond
// "an AF_UNIX socket path", so this just retries the connect).
const (
	dialRetryInterval = 100 * time.Millisecond
	dialRetryTimeout  = 10 * time.Second
)

// setUpSessionEngine returns the SessionEngine the launch Pipeline should
// drive: an in-process *prefetcher.Engine by default, or a *RemoteEngine
// dialed against iorap-prefetcherd's control socket when out-of-process
// readahead is requested (spec.md §4.4's "in-process or out-of-process"
// split, §6's `iorapd.readahead.out_of_process` property). The returned
// closer releases whatever connection was opened; callers must defer it.
func setUpSessionEngine(ctx context.Context, args *flags.Args, cfg *config.Config, properties *config.PropertyStore) (prefetcher.SessionEngine, func(), error) {
	outOfProcess := args.OutOfProcess || properties.ReadaheadOutOfProcess()
	if !outOfProcess {
		return prefetcher.New(), func() {}, nil
	}

	log.G(ctx).Infof("iorapd: dialing out-of-process session engine at %s", cfg.SocketPath)
	conn, err := dialWithRetry(ctx, cfg.SocketPath, dialRetryTimeout)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "connect to prefetch session engine at %s", cfg.SocketPath)
	}

	encoder := control.NewSocketEncoder(conn)
	remote := prefetcher.NewRemoteEngine(encoder)
	return remote, func() { _ = conn.Close() }, nil
}

// dialWithRetry connects to a unix socket, retrying while iorap-prefetcherd
// is still starting up; it gives up once timeout elapses or ctx is done.
func dialWithRetry(ctx context.Context, socketPath string, timeout time.Duration) (*net.UnixConn, error) {
	deadline := time.Now().Add(timeout)
	addr := &net.UnixAddr{Name: socketPath, Net: "unix"}

	for {
		conn, err := net.DialUnix("unix", nil, addr)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryInterval):
		}
	}
}
