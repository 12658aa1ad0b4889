/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package compiler merges one or more raw page-cache traces for a single
// activity into a deduplicated, timestamp-ordered prefetch plan (spec.md
// §4.3).
package compiler

import (
	"context"
	"math"
	"regexp"
	"sort"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/inode2filename"
	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/trace"
)

// InputTrace is one raw trace file plus its optional per-trace cutoff
// (spec.md §4.3: "a sequence [(raw_trace_path_i, timestamp_limit_ns_i)]").
// A nil TimestampLimitNs means "no cutoff" (treated as u64::MAX).
type InputTrace struct {
	Path             string
	TimestampLimitNs *uint64
}

// BuildInputs pairs raw trace paths with optional per-trace cutoffs,
// enforcing spec.md §4.3's "if both non-empty, their lengths must match
// exactly; mismatch is a fatal error" policy. Pass a nil or empty limitsNs
// to mean "no cutoff for any trace".
func BuildInputs(paths []string, limitsNs []uint64) ([]InputTrace, error) {
	if len(limitsNs) != 0 && len(limitsNs) != len(paths) {
		return nil, errors.Errorf(
			"input_file_names has %d entries but timestamp_limit_ns has %d", len(paths), len(limitsNs))
	}

	inputs := make([]InputTrace, len(paths))
	for i, p := range paths {
		in := InputTrace{Path: p}
		if len(limitsNs) != 0 {
			v := limitsNs[i]
			in.TimestampLimitNs = &v
		}
		inputs[i] = in
	}
	return inputs, nil
}

// Result is the compiler's output: the merged, sorted, add-only entries
// (used for the diagnostic text format) and the corresponding persisted
// CompiledTrace (used for the binary format).
type Result struct {
	Entries []models.CompilerEntry
	Trace   *models.CompiledTrace
}

// Compile runs the full pipeline described in spec.md §4.3: load and
// filter each input trace, resolve inode keys to paths via resolver,
// apply an optional blacklist regex, merge duplicate (path,
// add_to_page_cache, page_index) keys keeping the minimum relative
// timestamp, sort into playback order, and assign index ids.
func Compile(ctx context.Context, inputs []InputTrace, resolver *inode2filename.Resolver, blacklist *regexp.Regexp) (*Result, error) {
	var allEvents []models.PageCacheEvent

	for _, in := range inputs {
		events, err := loadAndFilterTrace(in)
		if err != nil {
			return nil, errors.Wrapf(err, "load trace %s", in.Path)
		}
		allEvents = append(allEvents, events...)
	}

	resolved, err := resolveFilenames(ctx, allEvents, resolver)
	if err != nil {
		return nil, err
	}

	filtered := applyBlacklist(resolved, blacklist)

	merged := mergeEntries(filtered)

	sort.Slice(merged, func(i, j int) bool { return merged[i].Less(merged[j]) })

	addOnly := merged[:0:0]
	for _, e := range merged {
		if e.AddToPageCache {
			addOnly = append(addOnly, e)
		}
	}

	return &Result{
		Entries: addOnly,
		Trace:   buildCompiledTrace(merged),
	}, nil
}

// loadAndFilterTrace implements step 1: read the trace, compute each
// event's timestamp relative to the trace's minimum timestamp (over *all*
// events in the trace, before cutoff filtering, matching the original
// GetStartTimestamp/SelectPageCacheFtraceEvents behavior), then drop
// events past the per-trace cutoff.
func loadAndFilterTrace(in InputTrace) ([]models.PageCacheEvent, error) {
	data, err := trace.ReadFileMapped(in.Path)
	if err != nil {
		return nil, errors.Wrap(err, "read raw trace")
	}

	events, err := trace.DecodeRawTrace(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode raw trace")
	}

	limit := uint64(math.MaxUint64)
	if in.TimestampLimitNs != nil {
		limit = *in.TimestampLimitNs
	}

	minTimestamp := uint64(math.MaxUint64)
	for _, ev := range events {
		if ev.Timestamp < minTimestamp {
			minTimestamp = ev.Timestamp
		}
	}
	if len(events) == 0 {
		minTimestamp = 0
	}

	out := events[:0:0]
	for _, ev := range events {
		if ev.Timestamp > limit {
			continue
		}
		ev.TimestampRelative = ev.Timestamp - minTimestamp
		out = append(out, ev)
	}
	return out, nil
}

// resolveFilenames implements step 2: resolve the distinct inode keys
// across all loaded events in one batch, dropping events whose inode
// fails to resolve.
func resolveFilenames(ctx context.Context, events []models.PageCacheEvent, resolver *inode2filename.Resolver) ([]models.CompilerEntry, error) {
	seen := make(map[models.InodeKey]bool)
	var distinct []models.InodeKey
	for _, ev := range events {
		if !seen[ev.Inode] {
			seen[ev.Inode] = true
			distinct = append(distinct, ev.Inode)
		}
	}

	paths := make(map[models.InodeKey]string, len(distinct))
	for res := range resolver.FindFilenamesFromInodes(ctx, distinct) {
		if res.Err == nil {
			paths[res.Inode] = res.Path
		}
	}

	entries := make([]models.CompilerEntry, 0, len(events))
	for _, ev := range events {
		path, ok := paths[ev.Inode]
		if !ok {
			log.G(ctx).WithField("inode", ev.Inode.Inode).Warn("compiler: dropping event with unresolved inode")
			continue
		}

		pageIndex := ev.Index / uint64(constant.PageSize)
		entries = append(entries, models.CompilerEntry{
			FilePath:          path,
			TimestampRelative: ev.TimestampRelative,
			AddToPageCache:    ev.AddToPageCache,
			PageIndex:         pageIndex,
		})
	}
	return entries, nil
}

// applyBlacklist implements step 3.
func applyBlacklist(entries []models.CompilerEntry, blacklist *regexp.Regexp) []models.CompilerEntry {
	if blacklist == nil {
		return entries
	}

	out := entries[:0:0]
	for _, e := range entries {
		if !blacklist.MatchString(e.FilePath) {
			out = append(out, e)
		}
	}
	return out
}

// mergeKey is the order-insensitive merge key from spec.md §4.3 step 4:
// (path, add_to_page_cache, page_index), ignoring timestamp.
type mergeKey struct {
	path           string
	addToPageCache bool
	pageIndex      uint64
}

// mergeEntries implements step 4: keyed merge-dedup across all input
// traces, retaining the minimum relative timestamp per key.
func mergeEntries(entries []models.CompilerEntry) []models.CompilerEntry {
	byKey := make(map[mergeKey]models.CompilerEntry, len(entries))
	for _, e := range entries {
		key := mergeKey{path: e.FilePath, addToPageCache: e.AddToPageCache, pageIndex: e.PageIndex}
		existing, ok := byKey[key]
		if !ok || e.TimestampRelative < existing.TimestampRelative {
			byKey[key] = e
		}
	}

	merged := make([]models.CompilerEntry, 0, len(byKey))
	for _, e := range byKey {
		merged = append(merged, e)
	}
	return merged
}

// buildCompiledTrace implements step 6: emit only add_to_page_cache=true
// entries, assigning each distinct path a monotonically increasing index
// id on first encounter in playback order.
func buildCompiledTrace(sorted []models.CompilerEntry) *models.CompiledTrace {
	ct := &models.CompiledTrace{}

	ids := make(map[string]int64)
	var nextID int64

	for _, e := range sorted {
		if !e.AddToPageCache {
			continue
		}

		id, ok := ids[e.FilePath]
		if !ok {
			id = nextID
			nextID++
			ids[e.FilePath] = id
			ct.Index = append(ct.Index, models.TraceIndexEntry{ID: id, FileName: e.FilePath})
		}

		ct.List = append(ct.List, models.TraceFileEntry{
			IndexID:         id,
			FileOffsetBytes: int64(e.PageIndex) * int64(constant.PageSize),
			FileLengthBytes: int64(constant.PageSize),
		})
	}

	return ct
}
