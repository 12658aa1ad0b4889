/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package control

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestServeDispatchesUntilEOF(t *testing.T) {
	r, w := io.Pipe()
	dec := NewPipeDecoder(r)
	enc := NewPipeEncoder(w)

	cmds := []Command{
		CreateSession(1, "com.example/Main"),
		RegisterFilePath(1, 0, "/data/app/base.apk"),
		DestroySession(1),
	}
	go func() {
		for _, cmd := range cmds {
			_ = enc.Send(cmd)
		}
		_ = w.Close()
	}()

	var got []Command
	err := Serve(context.Background(), dec, r.Close, func(cmd Command) error {
		got = append(got, cmd)
		return nil
	})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(got) != len(cmds) {
		t.Fatalf("got %d commands, want %d", len(got), len(cmds))
	}
	for i := range cmds {
		if got[i].Variant != cmds[i].Variant {
			t.Fatalf("command %d: got variant %v, want %v", i, got[i].Variant, cmds[i].Variant)
		}
	}
}

func TestServeStopsOnHandleError(t *testing.T) {
	r, w := io.Pipe()
	dec := NewPipeDecoder(r)
	enc := NewPipeEncoder(w)

	go func() {
		_ = enc.Send(CreateSession(1, "com.example/Main"))
		_ = enc.Send(Exit())
		// A real peer would keep writing; Serve must stop at the sentinel
		// error without waiting for this to ever be read.
		time.Sleep(50 * time.Millisecond)
		_ = w.Close()
	}()

	errStop := io.ErrClosedPipe
	err := Serve(context.Background(), dec, r.Close, func(cmd Command) error {
		if cmd.Variant == VariantExit {
			return errStop
		}
		return nil
	})
	if err != errStop {
		t.Fatalf("Serve err = %v, want %v", err, errStop)
	}
}

func TestServeUnblocksOnContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	dec := NewPipeDecoder(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, dec, r.Close, func(Command) error { return nil })
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after ctx cancellation")
	}
}
