/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package control

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/pkg/errdefs"
	"github.com/iorap-project/iorapd/pkg/models"
)

// ErrIncomplete is returned by Decode when buf doesn't yet hold a whole
// frame; the caller should read more bytes and retry (spec.md §4.5:
// "partial commands remain in the buffer").
var ErrIncomplete = errors.New("control: incomplete frame")

// FdSource supplies the next ancillary descriptor popped from the socket
// transport's FIFO (spec.md §4.5). PipeDecoder never calls it.
type FdSource interface {
	PopFd() (int, bool)
}

// Encode appends cmd's wire representation to buf and returns the result.
func Encode(buf []byte, cmd Command) []byte {
	buf = appendU32(buf, uint32(cmd.Variant))

	switch cmd.Variant {
	case VariantRegisterFilePath:
		buf = appendU32(buf, cmd.SessionID)
		buf = appendU32(buf, cmd.PathID)
		buf = appendLPString(buf, cmd.Path)
	case VariantUnregisterFilePath:
		buf = appendU32(buf, cmd.SessionID)
		buf = appendU32(buf, cmd.PathID)
	case VariantReadAhead:
		buf = appendU32(buf, cmd.SessionID)
		buf = appendU32(buf, cmd.PathID)
		buf = appendU32(buf, uint32(cmd.Kind))
		buf = appendU64(buf, cmd.Length)
		buf = appendU64(buf, cmd.Offset)
	case VariantExit:
		// no payload
	case VariantCreateSession:
		buf = appendU32(buf, cmd.SessionID)
		buf = appendLPString(buf, cmd.Description)
	case VariantDestroySession, VariantDumpSession:
		buf = appendU32(buf, cmd.SessionID)
	case VariantDumpEverything:
		// no payload
	case VariantCreateFdSession:
		buf = appendU32(buf, cmd.SessionID)
		buf = appendLPString(buf, cmd.Description)
		// The fd itself travels out-of-band via SCM_RIGHTS; it is never
		// part of the byte stream (spec.md §4.5).
	}

	return buf
}

// Decode attempts to parse one command from the front of buf. On success it
// returns the command and the number of bytes consumed. If buf does not yet
// hold a complete frame, it returns ErrIncomplete and consumed=0, and the
// caller should wait for more input. fds is consulted only for variants
// that require an fd (currently only CreateFdSession); pass nil on the pipe
// transport, where that variant cannot occur.
func Decode(buf []byte, fds FdSource) (Command, int, error) {
	var cmd Command

	tag, ok := peekU32(buf, 0)
	if !ok {
		return cmd, 0, ErrIncomplete
	}
	variant := Variant(tag)

	switch variant {
	case VariantRegisterFilePath:
		sid, pid, path, n, ok := decodeU32U32String(buf)
		if !ok {
			return cmd, 0, ErrIncomplete
		}
		cmd = Command{Variant: variant, SessionID: sid, PathID: pid, Path: path}
		return cmd, n, nil

	case VariantUnregisterFilePath:
		n := 4 + 4 + 4
		if len(buf) < n {
			return cmd, 0, ErrIncomplete
		}
		sid, _ := peekU32(buf, 4)
		pid, _ := peekU32(buf, 8)
		return Command{Variant: variant, SessionID: sid, PathID: pid}, n, nil

	case VariantReadAhead:
		n := 4 + 4 + 4 + 4 + 8 + 8
		if len(buf) < n {
			return cmd, 0, ErrIncomplete
		}
		sid, _ := peekU32(buf, 4)
		pid, _ := peekU32(buf, 8)
		kind, _ := peekU32(buf, 12)
		length := binary.LittleEndian.Uint64(buf[16:24])
		offset := binary.LittleEndian.Uint64(buf[24:32])
		return Command{
			Variant: variant, SessionID: sid, PathID: pid,
			Kind: models.EntryKind(kind), Length: length, Offset: offset,
		}, n, nil

	case VariantExit:
		return Command{Variant: variant}, 4, nil

	case VariantCreateSession:
		sid, desc, n, ok := decodeU32String(buf)
		if !ok {
			return cmd, 0, ErrIncomplete
		}
		return Command{Variant: variant, SessionID: sid, Description: desc}, n, nil

	case VariantDestroySession, VariantDumpSession:
		n := 4 + 4
		if len(buf) < n {
			return cmd, 0, ErrIncomplete
		}
		sid, _ := peekU32(buf, 4)
		return Command{Variant: variant, SessionID: sid}, n, nil

	case VariantDumpEverything:
		return Command{Variant: variant}, 4, nil

	case VariantCreateFdSession:
		sid, desc, n, ok := decodeU32String(buf)
		if !ok {
			return cmd, 0, ErrIncomplete
		}
		if fds == nil {
			return cmd, 0, errors.Wrap(errdefs.ErrProtocolViolation, "CreateFdSession on a transport with no fd source")
		}
		fd, ok := fds.PopFd()
		if !ok {
			return cmd, 0, errors.Wrap(errdefs.ErrProtocolViolation, "CreateFdSession with no fd available")
		}
		return Command{Variant: variant, SessionID: sid, Description: desc, Fd: fd}, n, nil

	default:
		return cmd, 0, errors.Wrapf(errdefs.ErrProtocolViolation, "unknown command tag %d", tag)
	}
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendLPString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func peekU32(buf []byte, offset int) (uint32, bool) {
	if len(buf) < offset+4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[offset : offset+4]), true
}

// decodeU32String decodes "u32 tag, u32 session_id, lp_string" shaped
// frames (CreateSession, CreateFdSession).
func decodeU32String(buf []byte) (sessionID uint32, s string, consumed int, ok bool) {
	if len(buf) < 8 {
		return 0, "", 0, false
	}
	sessionID = binary.LittleEndian.Uint32(buf[4:8])
	strLen, hasLen := peekU32(buf, 8)
	if !hasLen {
		return 0, "", 0, false
	}
	end := 12 + int(strLen)
	if len(buf) < end {
		return 0, "", 0, false
	}
	return sessionID, string(buf[12:end]), end, true
}

// decodeU32U32String decodes "u32 tag, u32 session_id, u32 path_id,
// lp_string" shaped frames (RegisterFilePath).
func decodeU32U32String(buf []byte) (sessionID, pathID uint32, s string, consumed int, ok bool) {
	if len(buf) < 12 {
		return 0, 0, "", 0, false
	}
	sessionID = binary.LittleEndian.Uint32(buf[4:8])
	pathID = binary.LittleEndian.Uint32(buf[8:12])
	strLen, hasLen := peekU32(buf, 12)
	if !hasLen {
		return 0, 0, "", 0, false
	}
	end := 16 + int(strLen)
	if len(buf) < end {
		return 0, 0, "", 0, false
	}
	return sessionID, pathID, string(buf[16:end]), end, true
}
