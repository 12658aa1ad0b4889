/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import (
	"context"
	"os"
	"testing"

	"github.com/iorap-project/iorapd/pkg/models"
)

// fakeDataSource is a fixed, in-memory DataSource for resolver tests.
type fakeDataSource struct {
	entries []InodeResult
}

func (f *fakeDataSource) Kind() DataSourceKind             { return DataSourceKindTextCache }
func (f *fakeDataSource) ResultIncludesDeviceNumber() bool { return true }

func (f *fakeDataSource) EmitInodes(ctx context.Context, results chan<- InodeResult) {
	defer close(results)
	for _, e := range f.entries {
		select {
		case results <- e:
		case <-ctx.Done():
			return
		}
	}
}

func TestFindFilenamesFromInodesReturnsExactlyOnePerInput(t *testing.T) {
	src := &fakeDataSource{entries: []InodeResult{
		successResult(models.InodeKey{DeviceMajor: 1, DeviceMinor: 0, Inode: 10}, "/a"),
		successResult(models.InodeKey{DeviceMajor: 1, DeviceMinor: 0, Inode: 20}, "/b"),
	}}
	r := NewResolver(src, VerificationNone)

	inputs := []models.InodeKey{
		{DeviceMajor: 1, DeviceMinor: 0, Inode: 20},
		{DeviceMajor: 1, DeviceMinor: 0, Inode: 10},
		{DeviceMajor: 1, DeviceMinor: 0, Inode: 999},
	}

	var got []InodeResult
	for res := range r.FindFilenamesFromInodes(context.Background(), inputs) {
		got = append(got, res)
	}

	if len(got) != len(inputs) {
		t.Fatalf("got %d results, want %d", len(got), len(inputs))
	}
	if got[0].Path != "/b" || got[1].Path != "/a" {
		t.Fatalf("results not in input order: %+v", got)
	}
	if got[2].Err == nil || got[2].Err.Kind != ErrorKindNotFound {
		t.Fatalf("expected not_found for unmatched input, got %+v", got[2])
	}
}

func TestEmitAllPassesThroughWithoutVerification(t *testing.T) {
	src := &fakeDataSource{entries: []InodeResult{
		successResult(models.InodeKey{DeviceMajor: 1, Inode: 1}, "/x"),
	}}
	r := NewResolver(src, VerificationNone)

	var got []InodeResult
	for res := range r.EmitAll(context.Background()) {
		got = append(got, res)
	}
	if len(got) != 1 || got[0].Path != "/x" {
		t.Fatalf("got %+v", got)
	}
}

func TestVerificationStatDropsStaleCacheEntry(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/real.txt"
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// A stale cache claims a bogus inode for a file that really exists
	// with a different inode; VerificationStat must catch the mismatch.
	src := &fakeDataSource{entries: []InodeResult{
		successResult(models.InodeKey{DeviceMajor: 0, DeviceMinor: 0, Inode: 123456789}, path),
	}}
	r := NewResolver(src, VerificationStat)

	var got []InodeResult
	for res := range r.EmitAll(context.Background()) {
		got = append(got, res)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results", len(got))
	}
	if got[0].Err == nil || got[0].Err.Kind != ErrorKindVerificationFailed {
		t.Fatalf("expected verification_failed, got %+v", got[0])
	}
}

func TestVerificationStatIOErrorOnMissingFile(t *testing.T) {
	src := &fakeDataSource{entries: []InodeResult{
		successResult(models.InodeKey{Inode: 1}, "/definitely/does/not/exist"),
	}}
	r := NewResolver(src, VerificationStat)

	var got []InodeResult
	for res := range r.EmitAll(context.Background()) {
		got = append(got, res)
	}
	if len(got) != 1 || got[0].Err == nil || got[0].Err.Kind != ErrorKindIOError {
		t.Fatalf("got %+v", got)
	}
}
