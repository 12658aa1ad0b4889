/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package control

import (
	"io"
)

// pipeReadChunk is the amount read from the transport per underlying Read
// call (spec.md §4.5: "reads up to a 1 MiB buffer from its input fd").
const pipeReadChunk = 1 << 20

// PipeDecoder parses a stream of commands off a plain byte-stream transport
// (a pipe fd), retaining partial frames across reads (spec.md §4.5).
type PipeDecoder struct {
	r      io.Reader
	buf    []byte
	chunk  []byte
	closed bool
}

// NewPipeDecoder wraps r, an already-opened pipe-like reader.
func NewPipeDecoder(r io.Reader) *PipeDecoder {
	return &PipeDecoder{r: r, chunk: make([]byte, pipeReadChunk)}
}

// Next returns the next complete command, blocking on reads as needed. It
// returns io.EOF once the transport is closed and no partial frame remains
// buffered (spec.md §4.5: "EOF terminates the child").
func (d *PipeDecoder) Next() (Command, error) {
	for {
		if len(d.buf) > 0 {
			cmd, n, err := Decode(d.buf, nil)
			if err == nil {
				d.buf = d.buf[n:]
				return cmd, nil
			}
			if err != ErrIncomplete {
				return Command{}, err
			}
		}

		if d.closed {
			return Command{}, io.EOF
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				d.closed = true
				continue
			}
			return Command{}, err
		}
	}
}

// PipeEncoder serializes commands onto a plain byte-stream transport.
type PipeEncoder struct {
	w io.Writer
}

func NewPipeEncoder(w io.Writer) *PipeEncoder {
	return &PipeEncoder{w: w}
}

func (e *PipeEncoder) Send(cmd Command) error {
	buf := Encode(nil, cmd)
	_, err := e.w.Write(buf)
	return err
}
