/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package trace implements the mmap-backed codec for iorapd's two on-disk
// trace artifacts: raw perfetto traces captured by the kernel and compiled
// traces produced by pkg/compiler (spec.md §4.1).
package trace

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ReadFileMapped opens path read-only, maps it MAP_SHARED|MAP_POPULATE,
// copies the mapped bytes out, and always unmaps before returning
// (spec.md §4.1: "open(O_RDONLY), fstat, mmap(...), parse ..., munmap").
// Copying out of the mapping keeps the returned slice valid after munmap,
// at the cost of one extra copy — cheap relative to trace file sizes.
func ReadFileMapped(path string) ([]byte, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, errors.Wrapf(err, "fstat %s", path)
	}
	if stat.Size == 0 {
		return nil, nil
	}

	mapped, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	defer func() { _ = unix.Munmap(mapped) }()

	out := make([]byte, len(mapped))
	copy(out, mapped)
	return out, nil
}

// WriteFileMapped creates (or truncates) path, ftruncates it to len(data),
// maps it MAP_SHARED for writing, copies data into the mapping, msyncs,
// and unmaps (spec.md §4.1 write path). The write is atomic only at the
// mapping level; callers needing rename-atomicity must write to a temp
// path and rename it themselves.
func WriteFileMapped(path string, data []byte) error {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_TRUNC|unix.O_RDWR, 0660)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer unix.Close(fd)

	if len(data) == 0 {
		return nil
	}

	if err := unix.Ftruncate(fd, int64(len(data))); err != nil {
		return errors.Wrapf(err, "ftruncate %s", path)
	}

	mapped, err := unix.Mmap(fd, 0, len(data), unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrapf(err, "mmap %s", path)
	}
	defer func() { _ = unix.Munmap(mapped) }()

	copy(mapped, data)

	if err := unix.Msync(mapped, unix.MS_SYNC); err != nil {
		return errors.Wrapf(err, "msync %s", path)
	}

	return nil
}
