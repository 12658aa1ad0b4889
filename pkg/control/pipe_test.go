/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package control

import (
	"bytes"
	"io"
	"testing"
)

func TestPipeEncoderDecoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewPipeEncoder(&buf)

	cmds := []Command{
		CreateSession(1, "com.example/Main"),
		RegisterFilePath(1, 0, "/data/app/base.apk"),
		ReadAhead(1, 0, 0, 4096, 0),
		DestroySession(1),
	}
	for _, cmd := range cmds {
		if err := enc.Send(cmd); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	dec := NewPipeDecoder(&buf)
	for i, want := range cmds {
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("Next[%d]: %v", i, err)
		}
		if got.Variant != want.Variant || got.SessionID != want.SessionID {
			t.Fatalf("Next[%d] = %+v, want %+v", i, got, want)
		}
	}

	if _, err := dec.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after draining, got %v", err)
	}
}

// partialReader trickles bytes one at a time to exercise the decoder's
// retained-partial-frame path (spec.md §4.5).
type partialReader struct {
	data []byte
}

func (r *partialReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data[:1])
	r.data = r.data[n:]
	return n, nil
}

func TestPipeDecoderHandlesByteAtATimeReads(t *testing.T) {
	buf := Encode(nil, CreateSession(7, "pkg/Activity"))
	dec := NewPipeDecoder(&partialReader{data: buf})

	got, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.SessionID != 7 || got.Description != "pkg/Activity" {
		t.Fatalf("got %+v", got)
	}
}
