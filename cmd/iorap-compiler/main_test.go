/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iorap-project/iorapd/internal/constant"
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

func TestRunBadArgsMissingOutputProto(t *testing.T) {
	dir := t.TempDir()
	path := writeRawTrace(t, dir, "trace.pb", []models.PageCacheEvent{
		{Inode: models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 1}, Timestamp: 0, AddToPageCache: true},
	})

	got := run([]string{path})
	if got != exitBadArgs {
		t.Fatalf("run() = %d, want exitBadArgs (%d)", got, exitBadArgs)
	}
}

func TestRunBadArgsNoInputFiles(t *testing.T) {
	got := run([]string{"--output-proto", filepath.Join(t.TempDir(), "out.pb")})
	if got != exitBadArgs {
		t.Fatalf("run() = %d, want exitBadArgs (%d)", got, exitBadArgs)
	}
}

func TestRunNoMatchWhenEverythingIsBlacklisted(t *testing.T) {
	dir := t.TempDir()
	apk := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 100}
	tracePath := writeRawTrace(t, dir, "trace.pb", []models.PageCacheEvent{
		{Inode: apk, Timestamp: 0, AddToPageCache: true, Index: 1 * uint64(constant.PageSize)},
	})
	cachePath := writeTextCache(t, dir, []string{
		"2049 100 4096 /product/app/Example/Example.apk",
	})

	outProto := filepath.Join(dir, "out.pb")
	got := run([]string{
		"--output-proto", outProto,
		"--inode-textcache", cachePath,
		"--blacklist-filter", ".*",
		tracePath,
	})
	if got != exitNoMatch {
		t.Fatalf("run() = %d, want exitNoMatch (%d)", got, exitNoMatch)
	}
}

func TestRunSuccessWritesCompiledTrace(t *testing.T) {
	dir := t.TempDir()
	apk := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 100}
	tracePath := writeRawTrace(t, dir, "trace.pb", []models.PageCacheEvent{
		{Inode: apk, Timestamp: 0, AddToPageCache: true, Index: 1 * uint64(constant.PageSize)},
	})
	cachePath := writeTextCache(t, dir, []string{
		"2049 100 4096 /product/app/Example/Example.apk",
	})

	outProto := filepath.Join(dir, "out.pb")
	got := run([]string{
		"--output-proto", outProto,
		"--inode-textcache", cachePath,
		"--output-text",
		tracePath,
	})
	if got != exitSuccess {
		t.Fatalf("run() = %d, want exitSuccess (%d)", got, exitSuccess)
	}
	if _, err := os.Stat(outProto); err != nil {
		t.Fatalf("expected %s to exist: %v", outProto, err)
	}
	if _, err := os.Stat(outProto + ".txt"); err != nil {
		t.Fatalf("expected %s to exist: %v", outProto+".txt", err)
	}
}

func TestRunBadArgsInvalidBlacklistRegex(t *testing.T) {
	dir := t.TempDir()
	apk := models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 100}
	tracePath := writeRawTrace(t, dir, "trace.pb", []models.PageCacheEvent{
		{Inode: apk, Timestamp: 0, AddToPageCache: true},
	})

	got := run([]string{
		"--output-proto", filepath.Join(dir, "out.pb"),
		"--blacklist-filter", "(unclosed",
		tracePath,
	})
	if got != exitBadArgs {
		t.Fatalf("run() = %d, want exitBadArgs (%d)", got, exitBadArgs)
	}
}
