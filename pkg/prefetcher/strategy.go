/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package prefetcher

import (
	"golang.org/x/sys/unix"

	"github.com/iorap-project/iorapd/pkg/models"
)

// readAheadOnce performs exactly one of the three strategies against fd and
// returns the EntryMapping recording what happened. It never retries and
// never consults prior attempts for the same path_id (spec.md §4.4 "Per-entry
// ordering and retry: none"), matching session.cc's SessionDirect::ReadAhead.
func readAheadOnce(fd int, pathID uint32, kind models.EntryKind, length, offset int64) models.EntryMapping {
	mapping := models.EntryMapping{PathID: pathID, Kind: kind, Length: length, Offset: offset}

	if fd < 0 {
		// Bad fd sentinel: every readahead against it is a counted failure,
		// not an abort (spec.md §4.4 "RegisterFilePath").
		return mapping
	}

	switch kind {
	case models.EntryKindFadvise:
		mapping.Success = unix.Fadvise(fd, offset, length, unix.FADV_WILLNEED) == nil

	case models.EntryKindMmapLocked, models.EntryKindMmapLock:
		needMlock := kind == models.EntryKindMmapLock

		flags := unix.MAP_SHARED
		if !needMlock {
			// MAP_LOCKED is best-effort; it can still be faulted in later.
			flags |= unix.MAP_LOCKED
		}

		data, err := unix.Mmap(fd, offset, int(length), unix.PROT_READ, flags)
		if err != nil {
			return mapping
		}
		mapping.Address = addressOf(data)

		if needMlock {
			if err := unix.Mlock(data); err != nil {
				// We already have a mapping, so it's kept in the list, but
				// the strong guarantee didn't hold: report failure anyway.
				mapping.Success = false
				return mapping
			}
		}
		mapping.Success = true
	}

	return mapping
}

// unmapEntry releases a previously successful mmap/mlock mapping. munmap
// also unlocks, so there is no separate munlock call (matching
// SessionDirect::UnmapWithoutErase).
func unmapEntry(m models.EntryMapping) {
	if m.Kind == models.EntryKindFadvise || m.Address == 0 || m.Length <= 0 {
		return
	}
	data := bytesAt(m.Address, int(m.Length))
	_ = unix.Munmap(data)
}
