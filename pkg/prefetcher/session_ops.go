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

// badFd is the sentinel recorded in Session.FDMap when RegisterFilePath's
// open(2) fails; subsequent ReadAhead calls against it are no-ops counted as
// failures rather than session-aborting errors (spec.md §4.4).
const badFd = -1

// registerFilePath opens path O_RDONLY and records it, even on failure.
func registerFilePath(s *models.Session, pathID uint32, path string) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		fd = badFd
	}

	s.PathMap[pathID] = path
	s.FDMap[pathID] = fd
	if _, ok := s.EntryLists[pathID]; !ok {
		s.EntryLists[pathID] = nil
	}
}

// unregisterFilePath unmaps every mapping for pathID, closes its descriptor
// and forgets it. Reports whether pathID was known.
func unregisterFilePath(s *models.Session, pathID uint32) bool {
	if _, ok := s.PathMap[pathID]; !ok {
		return false
	}

	for _, m := range s.EntryLists[pathID] {
		unmapEntry(m)
	}

	delete(s.EntryLists, pathID)
	delete(s.PathMap, pathID)

	if fd, ok := s.FDMap[pathID]; ok {
		if fd >= 0 {
			_ = unix.Close(fd)
		}
		delete(s.FDMap, pathID)
	}

	return true
}

// readAhead performs one readahead attempt for pathID and appends the
// resulting EntryMapping to the session's per-path list regardless of
// outcome. Reports the attempt's success.
func readAhead(s *models.Session, pathID uint32, kind models.EntryKind, length, offset int64) bool {
	fd, ok := s.FDMap[pathID]
	if !ok {
		return false
	}

	mapping := readAheadOnce(fd, pathID, kind, length, offset)
	s.EntryLists[pathID] = append(s.EntryLists[pathID], mapping)
	return mapping.Success
}

// destroy unregisters every path a session still holds, releasing every fd
// and mapping; idempotent against a session with nothing left to release.
func destroy(s *models.Session) {
	for pathID := range s.PathMap {
		unregisterFilePath(s, pathID)
	}
}
