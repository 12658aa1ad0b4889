/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package control

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// socketReadChunk mirrors pipeReadChunk; the socket transport uses the same
// framing, just with an extra ancillary-data channel (spec.md §4.5).
const socketReadChunk = 1 << 20

// fdQueue is the FIFO ancillary descriptors accumulate into, popped in
// order whenever a CreateFdSession frame is decoded (spec.md §4.5).
type fdQueue struct {
	fds []int
}

func (q *fdQueue) push(fd int) {
	q.fds = append(q.fds, fd)
}

func (q *fdQueue) PopFd() (int, bool) {
	if len(q.fds) == 0 {
		return 0, false
	}
	fd := q.fds[0]
	q.fds = q.fds[1:]
	return fd, true
}

// SocketDecoder parses commands off an AF_UNIX socket, tracking any
// SCM_RIGHTS descriptors delivered alongside the byte stream (spec.md §4.5).
type SocketDecoder struct {
	conn   *net.UnixConn
	buf    []byte
	fds    fdQueue
	closed bool
}

func NewSocketDecoder(conn *net.UnixConn) *SocketDecoder {
	return &SocketDecoder{conn: conn}
}

// Next returns the next complete command, or io.EOF once the peer has
// closed the connection and no partial frame remains.
func (d *SocketDecoder) Next() (Command, error) {
	for {
		if len(d.buf) > 0 {
			cmd, n, err := Decode(d.buf, &d.fds)
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

		dataBuf := make([]byte, socketReadChunk)
		// unix.CmsgSpace(4) covers a single int32 fd per recvmsg; at most
		// one fd ever arrives per CreateFdSession (spec.md §6).
		oobBuf := make([]byte, unix.CmsgSpace(4))

		n, oobn, _, _, err := d.conn.ReadMsgUnix(dataBuf, oobBuf)
		if n > 0 {
			d.buf = append(d.buf, dataBuf[:n]...)
		}
		if oobn > 0 {
			scms, perr := unix.ParseSocketControlMessage(oobBuf[:oobn])
			if perr != nil {
				return Command{}, errors.Wrap(perr, "parse control message")
			}
			for _, scm := range scms {
				fds, perr := unix.ParseUnixRights(&scm)
				if perr != nil {
					return Command{}, errors.Wrap(perr, "extract file descriptors")
				}
				for _, fd := range fds {
					d.fds.push(fd)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				d.closed = true
				continue
			}
			return Command{}, err
		}
		if n == 0 && oobn == 0 {
			d.closed = true
		}
	}
}

// SocketEncoder serializes commands onto an AF_UNIX socket, sending fd as
// an SCM_RIGHTS ancillary message whenever the command carries one.
type SocketEncoder struct {
	conn *net.UnixConn
}

func NewSocketEncoder(conn *net.UnixConn) *SocketEncoder {
	return &SocketEncoder{conn: conn}
}

func (e *SocketEncoder) Send(cmd Command) error {
	buf := Encode(nil, cmd)

	var oob []byte
	if cmd.Variant.RequiresFd() {
		oob = unix.UnixRights(cmd.Fd)
	}

	for len(buf) > 0 || len(oob) > 0 {
		n, oobn, err := e.conn.WriteMsgUnix(buf, oob, nil)
		if err != nil {
			return errors.Wrap(err, "send control message")
		}
		buf = buf[n:]
		oob = oob[oobn:]
	}
	return nil
}
