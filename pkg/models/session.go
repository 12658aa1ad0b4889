/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package models

import "time"

// EntryKind distinguishes the readahead strategy recorded for one
// EntryMapping (spec.md §4.4).
type EntryKind int

const (
	EntryKindFadvise EntryKind = iota
	EntryKindMmapLocked
	EntryKindMmapLock
)

// EntryMapping is one playback step within a Session: a reference into one
// of the session's registered paths, plus the strategy-specific result of
// attempting readahead against it (spec.md §3 "Session").
type EntryMapping struct {
	PathID  uint32
	Kind    EntryKind
	Length  int64
	Offset  int64
	Address uintptr // non-zero only for the mmap strategies
	Success bool
}

// Session is the in-memory, runtime-only unit of prefetch replay state
// (spec.md §3 "Session"). Every PathID referenced from EntryLists has a
// corresponding, possibly-failed, entry in FDMap and PathMap — a session
// never allows dangling path ids.
type Session struct {
	ID           uint32
	Description  string
	CreationTime time.Time

	PathMap    map[uint32]string
	FDMap      map[uint32]int // -1 is the "bad fd" sentinel
	EntryLists map[uint32][]EntryMapping
}

// NewSession allocates an empty Session ready for RegisterFilePath calls.
func NewSession(id uint32, description string, creationTime time.Time) *Session {
	return &Session{
		ID:           id,
		Description:  description,
		CreationTime: creationTime,
		PathMap:      make(map[uint32]string),
		FDMap:        make(map[uint32]int),
		EntryLists:   make(map[uint32][]EntryMapping),
	}
}
