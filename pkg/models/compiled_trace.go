/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package models

import "fmt"

// CompilerEntry is the intermediate, per-file-access record the compiler
// sorts and merges before emitting a CompiledTrace (spec.md §3 "Compiler
// entry"). Ordering is lexicographic on (TimestampRelative, FilePath,
// AddToPageCache, PageIndex); IgnoreTimestampLess provides the secondary
// ordering used for merge-deduplication across multiple input traces.
type CompilerEntry struct {
	FilePath          string
	TimestampRelative uint64
	AddToPageCache    bool
	PageIndex         uint64
}

// Less implements the primary sort order: by TimestampRelative first.
func (e CompilerEntry) Less(o CompilerEntry) bool {
	if e.TimestampRelative != o.TimestampRelative {
		return e.TimestampRelative < o.TimestampRelative
	}
	return e.lessIgnoringTimestamp(o)
}

// IgnoreTimestampLess orders two entries without consulting their
// timestamps; used to detect duplicate accesses across merged traces.
func (e CompilerEntry) IgnoreTimestampLess(o CompilerEntry) bool {
	return e.lessIgnoringTimestamp(o)
}

func (e CompilerEntry) lessIgnoringTimestamp(o CompilerEntry) bool {
	if e.FilePath != o.FilePath {
		return e.FilePath < o.FilePath
	}
	if e.AddToPageCache != o.AddToPageCache {
		// false (delete) sorts before true (add) so a delete observed at the
		// same key is dropped before an add would be, matching the merge's
		// "drop deletes after aging" rule.
		return !e.AddToPageCache
	}
	return e.PageIndex < o.PageIndex
}

// equalIgnoringTimestamp reports whether two entries reference the same
// (FilePath, AddToPageCache, PageIndex) key, used by the merge pass to
// dedupe repeated accesses across traces.
func (e CompilerEntry) equalIgnoringTimestamp(o CompilerEntry) bool {
	return e.FilePath == o.FilePath &&
		e.AddToPageCache == o.AddToPageCache &&
		e.PageIndex == o.PageIndex
}

// EqualIgnoringTimestamp is the exported form of equalIgnoringTimestamp.
func (e CompilerEntry) EqualIgnoringTimestamp(o CompilerEntry) bool {
	return e.equalIgnoringTimestamp(o)
}

// TraceIndexEntry is one row of a CompiledTrace's index: a unique id mapped
// to a unique file name (spec.md §3 "Compiled trace").
type TraceIndexEntry struct {
	ID       int64
	FileName string
}

// TraceFileEntry is one row of a CompiledTrace's playback list. Offset and
// Length are always page-aligned; Length is always PageSize bytes.
type TraceFileEntry struct {
	IndexID         int64
	FileOffsetBytes int64
	FileLengthBytes int64
}

// CompiledTrace is the persisted, ready-to-replay artifact the compiler
// emits: an Index of files referenced, and an ordered playback List of
// (file, offset, length) entries. Every IndexID in List must name an ID
// present in Index; add_to_page_cache=false entries never survive into
// List (spec.md §3 invariants).
type CompiledTrace struct {
	Index []TraceIndexEntry
	List  []TraceFileEntry
}

// indexByID returns a lookup table of Index by ID, used to validate List.
func (t *CompiledTrace) indexByID() map[int64]TraceIndexEntry {
	m := make(map[int64]TraceIndexEntry, len(t.Index))
	for _, e := range t.Index {
		m[e.ID] = e
	}
	return m
}

// Validate checks the CompiledTrace invariants: unique index ids, unique
// file names, and every list entry referencing a known index id.
func (t *CompiledTrace) Validate() error {
	seenIDs := make(map[int64]struct{}, len(t.Index))
	seenNames := make(map[string]struct{}, len(t.Index))
	for _, e := range t.Index {
		if _, ok := seenIDs[e.ID]; ok {
			return fmt.Errorf("duplicate index id %d", e.ID)
		}
		seenIDs[e.ID] = struct{}{}
		if _, ok := seenNames[e.FileName]; ok {
			return fmt.Errorf("duplicate index file name %q", e.FileName)
		}
		seenNames[e.FileName] = struct{}{}
	}

	for _, l := range t.List {
		if _, ok := seenIDs[l.IndexID]; !ok {
			return fmt.Errorf("list entry references unknown index id %d", l.IndexID)
		}
	}
	return nil
}
