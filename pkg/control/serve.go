/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package control

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// Decoder is the common interface PipeDecoder and SocketDecoder satisfy.
type Decoder interface {
	Next() (Command, error)
}

// Serve decodes commands off dec and invokes handle for each, until dec
// reports io.EOF, handle returns a non-nil error (the prefetch engine's
// Exit command dispatches to one such sentinel), or ctx is cancelled.
//
// The decode loop's read blocks on the underlying pipe/socket with no
// built-in way to interrupt it (spec.md §4.5's transport is a raw
// byte/datagram stream), so cancellation is handled by a second goroutine
// that calls closer to force the blocking read to fail — the receive half
// and the cancellation-watcher half of the round trip run concurrently,
// joined by errgroup so either one's error or ctx's cancellation stops both.
func Serve(ctx context.Context, dec Decoder, closer func() error, handle func(Command) error) error {
	// cancel unblocks the watcher goroutine below even when the decode loop
	// ends on its own (clean EOF) rather than via ctx cancellation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		for {
			cmd, err := dec.Next()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			if err := handle(cmd); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		if closer != nil {
			_ = closer()
		}
		return nil
	})

	return g.Wait()
}
