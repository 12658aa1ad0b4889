/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package models

import "testing"

func TestCompilerEntryOrdering(t *testing.T) {
	a := CompilerEntry{FilePath: "a", TimestampRelative: 1, PageIndex: 0}
	b := CompilerEntry{FilePath: "a", TimestampRelative: 2, PageIndex: 0}
	if !a.Less(b) {
		t.Fatal("expected a < b by timestamp")
	}
	if b.Less(a) {
		t.Fatal("expected b not < a")
	}
}

func TestCompilerEntryIgnoreTimestampOrdering(t *testing.T) {
	a := CompilerEntry{FilePath: "a", PageIndex: 0, AddToPageCache: false}
	b := CompilerEntry{FilePath: "a", PageIndex: 0, AddToPageCache: true}
	if !a.IgnoreTimestampLess(b) {
		t.Fatal("expected delete to sort before add at the same key")
	}
}

func TestCompilerEntryEqualIgnoringTimestamp(t *testing.T) {
	a := CompilerEntry{FilePath: "a", TimestampRelative: 1, PageIndex: 5, AddToPageCache: true}
	b := CompilerEntry{FilePath: "a", TimestampRelative: 999, PageIndex: 5, AddToPageCache: true}
	if !a.EqualIgnoringTimestamp(b) {
		t.Fatal("expected equality ignoring differing timestamps")
	}
}

func TestCompiledTraceValidate(t *testing.T) {
	trace := CompiledTrace{
		Index: []TraceIndexEntry{{ID: 1, FileName: "a"}, {ID: 2, FileName: "b"}},
		List: []TraceFileEntry{
			{IndexID: 1, FileOffsetBytes: 0, FileLengthBytes: 4096},
			{IndexID: 2, FileOffsetBytes: 4096, FileLengthBytes: 4096},
		},
	}
	if err := trace.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompiledTraceValidateDanglingIndexID(t *testing.T) {
	trace := CompiledTrace{
		Index: []TraceIndexEntry{{ID: 1, FileName: "a"}},
		List:  []TraceFileEntry{{IndexID: 2, FileOffsetBytes: 0, FileLengthBytes: 4096}},
	}
	if err := trace.Validate(); err == nil {
		t.Fatal("expected error for dangling index id")
	}
}

func TestCompiledTraceValidateDuplicateIndexID(t *testing.T) {
	trace := CompiledTrace{
		Index: []TraceIndexEntry{{ID: 1, FileName: "a"}, {ID: 1, FileName: "b"}},
	}
	if err := trace.Validate(); err == nil {
		t.Fatal("expected error for duplicate index id")
	}
}

func TestCompiledTraceValidateDuplicateFileName(t *testing.T) {
	trace := CompiledTrace{
		Index: []TraceIndexEntry{{ID: 1, FileName: "a"}, {ID: 2, FileName: "a"}},
	}
	if err := trace.Validate(); err == nil {
		t.Fatal("expected error for duplicate file name")
	}
}

func TestAppLaunchHistoryEligibleForCompile(t *testing.T) {
	ts := uint64(123)
	h := AppLaunchHistory{Temperature: TemperatureCold, TraceEnabled: true, IntentStartedNs: &ts}
	if !h.EligibleForCompile() {
		t.Fatal("expected cold+traced+intent-started history to be eligible")
	}

	h.Temperature = TemperatureWarm
	if h.EligibleForCompile() {
		t.Fatal("expected warm history to be ineligible")
	}
}
