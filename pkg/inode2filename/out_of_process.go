/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/pkg/models"
)

// OutOfProcessResolver resolves inodes by forking a resolver binary and
// exchanging request/response frames over its stdin/stdout pipes (spec.md
// §4.2: "out-of-process via fork+exec of the resolver binary communicating
// through an IPC channel described in §6"). §6 only specifies the
// session-engine control protocol's framing style, not a resolver-specific
// message set, so this reuses that style — u32 little-endian fields and
// lp_string = u32 length + bytes — for a minimal request/response pair of
// its own, rather than overloading the session-engine command variants.
type OutOfProcessResolver struct {
	// Path is the resolver binary to exec. Args are passed through
	// unchanged (e.g. "--roots", a text-cache path, ...).
	Path string
	Args []string
}

func NewOutOfProcessResolver(path string, args []string) *OutOfProcessResolver {
	return &OutOfProcessResolver{Path: path, Args: args}
}

// Resolve forks the resolver binary, sends inputs as a request frame, and
// returns exactly one InodeResult per input in the same order (mirroring
// Resolver.FindFilenamesFromInodes's in-process contract).
func (r *OutOfProcessResolver) Resolve(ctx context.Context, inputs []models.InodeKey) ([]InodeResult, error) {
	cmd := exec.CommandContext(ctx, r.Path, r.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "open resolver stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "open resolver stdout")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start resolver process")
	}

	writeErr := writeRequest(stdin, inputs)
	stdin.Close()
	if writeErr != nil {
		_ = cmd.Wait()
		return nil, errors.Wrap(writeErr, "write resolver request")
	}

	results, readErr := readResponse(stdout, len(inputs))

	waitErr := cmd.Wait()
	if readErr != nil {
		return nil, errors.Wrap(readErr, "read resolver response")
	}
	if waitErr != nil {
		return nil, errors.Wrap(waitErr, "resolver process exited with error")
	}

	return results, nil
}

func writeRequest(w io.Writer, inputs []models.InodeKey) error {
	bw := bufio.NewWriter(w)

	if err := writeU32(bw, uint32(len(inputs))); err != nil {
		return err
	}
	for _, in := range inputs {
		if err := writeU32(bw, in.DeviceMajor); err != nil {
			return err
		}
		if err := writeU32(bw, in.DeviceMinor); err != nil {
			return err
		}
		if err := writeU64(bw, in.Inode); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readResponse(r io.Reader, want int) ([]InodeResult, error) {
	br := bufio.NewReader(r)

	count, err := readU32(br)
	if err != nil {
		return nil, err
	}
	if int(count) != want {
		return nil, errors.Errorf("resolver returned %d results, expected %d", count, want)
	}

	results := make([]InodeResult, 0, count)
	for i := uint32(0); i < count; i++ {
		major, err := readU32(br)
		if err != nil {
			return nil, err
		}
		minor, err := readU32(br)
		if err != nil {
			return nil, err
		}
		inode, err := readU64(br)
		if err != nil {
			return nil, err
		}
		errorKind, err := readU32(br)
		if err != nil {
			return nil, err
		}
		path, err := readLPString(br)
		if err != nil {
			return nil, err
		}

		key := models.InodeKey{DeviceMajor: major, DeviceMinor: minor, Inode: inode}
		if ErrorKind(errorKind) == ErrorKindNone {
			results = append(results, successResult(key, path))
		} else {
			results = append(results, failureResult(key, ErrorKind(errorKind), nil))
		}
	}
	return results, nil
}

// writeResponse is the counterpart used by a resolver-binary entrypoint to
// emit its results back to the parent over stdout.
func writeResponse(w io.Writer, results []InodeResult) error {
	bw := bufio.NewWriter(w)

	if err := writeU32(bw, uint32(len(results))); err != nil {
		return err
	}
	for _, res := range results {
		if err := writeU32(bw, res.Inode.DeviceMajor); err != nil {
			return err
		}
		if err := writeU32(bw, res.Inode.DeviceMinor); err != nil {
			return err
		}
		if err := writeU64(bw, res.Inode.Inode); err != nil {
			return err
		}
		kind := ErrorKindNone
		if res.Err != nil {
			kind = res.Err.Kind
		}
		if err := writeU32(bw, uint32(kind)); err != nil {
			return err
		}
		if err := writeLPString(bw, res.Path); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeU32(w io.Writer, v uint32) error {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	_, err := w.Write(tmp[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	_, err := w.Write(tmp[:])
	return err
}

func writeLPString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

func readLPString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// RunResolverServer implements the resolver-binary side of the out-of-process
// protocol: read a request from r, resolve it against resolver, write the
// response to w. Intended to back a small standalone entrypoint.
func RunResolverServer(ctx context.Context, r io.Reader, w io.Writer, resolver *Resolver) error {
	br := bufio.NewReader(r)

	count, err := readU32(br)
	if err != nil {
		return errors.Wrap(err, "read request count")
	}

	inputs := make([]models.InodeKey, 0, count)
	for i := uint32(0); i < count; i++ {
		major, err := readU32(br)
		if err != nil {
			return errors.Wrap(err, "read request major")
		}
		minor, err := readU32(br)
		if err != nil {
			return errors.Wrap(err, "read request minor")
		}
		inode, err := readU64(br)
		if err != nil {
			return errors.Wrap(err, "read request inode")
		}
		inputs = append(inputs, models.InodeKey{DeviceMajor: major, DeviceMinor: minor, Inode: inode})
	}

	results := make([]InodeResult, 0, len(inputs))
	for res := range resolver.FindFilenamesFromInodes(ctx, inputs) {
		results = append(results, res)
	}

	return writeResponse(w, results)
}
