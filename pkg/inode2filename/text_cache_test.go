/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseTextCacheLine(t *testing.T) {
	inode, path, ok := parseTextCacheLine("64769 131 4096   /system/bin/app_process64")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if path != "/system/bin/app_process64" {
		t.Fatalf("got path %q", path)
	}
	if inode.Inode != 131 {
		t.Fatalf("got inode %d, want 131", inode.Inode)
	}
}

func TestParseTextCacheLineRejectsMalformed(t *testing.T) {
	for _, line := range []string{"", "64769", "64769 131", "not-a-number 131 4096 /a"} {
		if _, _, ok := parseTextCacheLine(line); ok {
			t.Fatalf("expected ok=false for %q", line)
		}
	}
}

func TestTextCacheSourceEmitInodes(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.txt")
	content := "64769 131 4096 /system/bin/app_process64\n64769 132 8192 /system/bin/toybox\n"
	if err := os.WriteFile(cachePath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src := NewTextCacheSource(cachePath)
	if src.Kind() != DataSourceKindTextCache {
		t.Fatalf("got kind %v", src.Kind())
	}

	results := make(chan InodeResult, 8)
	src.EmitInodes(context.Background(), results)

	var got []InodeResult
	for r := range results {
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Path != "/system/bin/app_process64" || got[0].Inode.Inode != 131 {
		t.Fatalf("got %+v", got[0])
	}
}

func TestTextCacheSourceMissingFileEmitsNothing(t *testing.T) {
	src := NewTextCacheSource("/nonexistent/path/cache.txt")
	results := make(chan InodeResult, 1)
	src.EmitInodes(context.Background(), results)

	count := 0
	for range results {
		count++
	}
	if count != 0 {
		t.Fatalf("got %d results, want 0", count)
	}
}
