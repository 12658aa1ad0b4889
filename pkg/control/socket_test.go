/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package control

import (
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}

	toConn := func(fd int) *net.UnixConn {
		f := os.NewFile(uintptr(fd), "socketpair")
		conn, err := net.FileConn(f)
		if err != nil {
			t.Fatalf("FileConn: %v", err)
		}
		f.Close()
		return conn.(*net.UnixConn)
	}

	return toConn(fds[0]), toConn(fds[1])
}

func TestSocketEncoderDecoderRoundTrip(t *testing.T) {
	a, b := socketpair(t)
	defer a.Close()
	defer b.Close()

	enc := NewSocketEncoder(a)
	dec := NewSocketDecoder(b)

	done := make(chan error, 1)
	go func() {
		done <- enc.Send(CreateSession(4, "com.example/Main"))
	}()

	got, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.SessionID != 4 || got.Description != "com.example/Main" {
		t.Fatalf("got %+v", got)
	}
}

func TestSocketEncoderDecoderCreateFdSessionCarriesFd(t *testing.T) {
	a, b := socketpair(t)
	defer a.Close()
	defer b.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	enc := NewSocketEncoder(a)
	dec := NewSocketDecoder(b)

	done := make(chan error, 1)
	go func() {
		done <- enc.Send(CreateFdSession(1, "pkg/Activity", int(r.Fd())))
	}()

	got, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Variant != VariantCreateFdSession {
		t.Fatalf("got variant %v", got.Variant)
	}
	if got.Fd <= 0 {
		t.Fatalf("expected a valid received fd, got %d", got.Fd)
	}
	unix.Close(got.Fd)
}
