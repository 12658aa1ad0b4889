/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package compiler

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/inode2filename"
	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/trace"
)

func writeRawTrace(t *testing.T, dir, name string, events []models.PageCacheEvent) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := trace.WriteFileMapped(path, trace.EncodeRawTrace(events)); err != nil {
		t.Fatalf("WriteFileMapped: %v", err)
	}
	return path
}

func writeTextCache(t *testing.T, dir string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, "textcache")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func newTextCacheResolver(t *testing.T, dir string, lines []string) *inode2filename.Resolver {
	t.Helper()
	src := inode2filename.NewTextCacheSource(writeTextCache(t, dir, lines))
	return inode2filename.NewResolver(src, inode2filename.VerificationNone)
}

func TestCompileSingleTraceFiltersByCutoff(t *testing.T) {
	dir := t.TempDir()

	apk := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 100}
	lib := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 200}

	events := []models.PageCacheEvent{
		{Inode: lib, Timestamp: 0, AddToPageCache: true, Index: 10 * uint64(constant.PageSize)},
		{Inode: apk, Timestamp: 7641303, AddToPageCache: true, Index: 540 * uint64(constant.PageSize)},
		{Inode: apk, Timestamp: 9000000, AddToPageCache: true, Index: 600 * uint64(constant.PageSize)},
	}
	path := writeRawTrace(t, dir, "trace.pb", events)

	resolver := newTextCacheResolver(t, dir, []string{
		"2049 100 4096 /product/app/CalculatorGooglePrebuilt/CalculatorGooglePrebuilt.apk",
		"2049 200 4096 /apex/com.android.art/lib64/libperfetto_hprof.so",
	})

	limit := uint64(7641303)
	inputs, err := BuildInputs([]string{path}, []uint64{limit})
	if err != nil {
		t.Fatalf("BuildInputs: %v", err)
	}

	result, err := Compile(context.Background(), inputs, resolver, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	text := FormatText(result.Entries)
	want := "{filename:\"/apex/com.android.art/lib64/libperfetto_hprof.so\",timestamp:0,add_to_page_cache:1,index:10}\n" +
		"{filename:\"/product/app/CalculatorGooglePrebuilt/CalculatorGooglePrebuilt.apk\",timestamp:7641303,add_to_page_cache:1,index:540}\n"
	if text != want {
		t.Fatalf("got text:\n%s\nwant:\n%s", text, want)
	}

	if err := result.Trace.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(result.Trace.List) != 2 {
		t.Fatalf("got %d list entries, want 2", len(result.Trace.List))
	}
}

func TestCompileMergesDuplicatesAcrossTraces(t *testing.T) {
	dir := t.TempDir()
	apk := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 100}

	other := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 101}

	trace1 := writeRawTrace(t, dir, "a.pb", []models.PageCacheEvent{
		{Inode: other, Timestamp: 4000, AddToPageCache: true, Index: 20 * uint64(constant.PageSize)},
		{Inode: apk, Timestamp: 5000, AddToPageCache: true, Index: 10 * uint64(constant.PageSize)},
	})
	trace2 := writeRawTrace(t, dir, "b.pb", []models.PageCacheEvent{
		{Inode: other, Timestamp: 1000, AddToPageCache: true, Index: 30 * uint64(constant.PageSize)},
		{Inode: apk, Timestamp: 3000, AddToPageCache: true, Index: 10 * uint64(constant.PageSize)},
	})

	resolver := newTextCacheResolver(t, dir, []string{
		"2049 100 4096 /product/app/Foo/Foo.apk",
		"2049 101 4096 /product/app/Foo/other.so",
	})

	inputs, err := BuildInputs([]string{trace1, trace2}, nil)
	if err != nil {
		t.Fatalf("BuildInputs: %v", err)
	}

	result, err := Compile(context.Background(), inputs, resolver, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var apkEntries int
	for _, e := range result.Entries {
		if e.FilePath == "/product/app/Foo/Foo.apk" {
			apkEntries++
			if e.TimestampRelative != 1000 {
				t.Fatalf("got timestamp %d, want the minimum 1000", e.TimestampRelative)
			}
		}
	}
	if apkEntries != 1 {
		t.Fatalf("got %d apk entries, want 1 (deduplicated)", apkEntries)
	}
}

func TestCompileDropsDeleteOnlyEntries(t *testing.T) {
	dir := t.TempDir()
	f := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 300}

	tracePath := writeRawTrace(t, dir, "trace.pb", []models.PageCacheEvent{
		{Inode: f, Timestamp: 1000, AddToPageCache: false, Index: 5 * uint64(constant.PageSize)},
	})
	resolver := newTextCacheResolver(t, dir, []string{"2049 300 4096 /data/app/Foo.apk"})

	inputs, err := BuildInputs([]string{tracePath}, nil)
	if err != nil {
		t.Fatalf("BuildInputs: %v", err)
	}

	result, err := Compile(context.Background(), inputs, resolver, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected delete-only events dropped entirely, got %+v", result.Entries)
	}
	if len(result.Trace.List) != 0 || len(result.Trace.Index) != 0 {
		t.Fatalf("expected empty compiled trace, got %+v", result.Trace)
	}
}

func TestCompileBlacklistFilter(t *testing.T) {
	dir := t.TempDir()
	apk := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 1}
	oat := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 2}

	tracePath := writeRawTrace(t, dir, "trace.pb", []models.PageCacheEvent{
		{Inode: apk, Timestamp: 1, AddToPageCache: true, Index: 1 * uint64(constant.PageSize)},
		{Inode: oat, Timestamp: 2, AddToPageCache: true, Index: 2 * uint64(constant.PageSize)},
	})
	resolver := newTextCacheResolver(t, dir, []string{
		"2049 1 4096 /data/app/Foo.apk",
		"2049 2 4096 /data/app/Foo.oat",
	})

	inputs, err := BuildInputs([]string{tracePath}, nil)
	if err != nil {
		t.Fatalf("BuildInputs: %v", err)
	}

	blacklist := regexp.MustCompile(`[.](art|oat|odex|vdex|dex)$`)
	result, err := Compile(context.Background(), inputs, resolver, blacklist)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].FilePath != "/data/app/Foo.apk" {
		t.Fatalf("got %+v", result.Entries)
	}
}

func TestCompileDropsUnresolvedInodes(t *testing.T) {
	dir := t.TempDir()
	unresolved := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 999}

	tracePath := writeRawTrace(t, dir, "trace.pb", []models.PageCacheEvent{
		{Inode: unresolved, Timestamp: 1, AddToPageCache: true, Index: 1 * uint64(constant.PageSize)},
	})
	resolver := newTextCacheResolver(t, dir, nil)

	inputs, err := BuildInputs([]string{tracePath}, nil)
	if err != nil {
		t.Fatalf("BuildInputs: %v", err)
	}

	result, err := Compile(context.Background(), inputs, resolver, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected unresolved inode dropped, got %+v", result.Entries)
	}
}

func TestBuildInputsRejectsLengthMismatch(t *testing.T) {
	_, err := BuildInputs([]string{"a", "b"}, []uint64{1})
	if err == nil {
		t.Fatal("expected error on length mismatch")
	}
}
