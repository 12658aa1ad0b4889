/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import (
	"bytes"
	"context"
	"testing"

	"github.com/iorap-project/iorapd/pkg/models"
)

func TestWriteRequestReadResponseRoundTripViaServer(t *testing.T) {
	src := &fakeDataSource{entries: []InodeResult{
		successResult(models.InodeKey{DeviceMajor: 1, DeviceMinor: 0, Inode: 10}, "/a"),
		successResult(models.InodeKey{DeviceMajor: 1, DeviceMinor: 0, Inode: 20}, "/b"),
	}}
	resolver := NewResolver(src, VerificationNone)

	inputs := []models.InodeKey{
		{DeviceMajor: 1, DeviceMinor: 0, Inode: 20},
		{DeviceMajor: 1, DeviceMinor: 0, Inode: 10},
		{DeviceMajor: 1, DeviceMinor: 0, Inode: 999},
	}

	var request bytes.Buffer
	if err := writeRequest(&request, inputs); err != nil {
		t.Fatalf("writeRequest: %v", err)
	}

	var response bytes.Buffer
	if err := RunResolverServer(context.Background(), &request, &response, resolver); err != nil {
		t.Fatalf("RunResolverServer: %v", err)
	}

	got, err := readResponse(&response, len(inputs))
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}

	if len(got) != len(inputs) {
		t.Fatalf("got %d results, want %d", len(got), len(inputs))
	}
	if got[0].Path != "/b" || got[1].Path != "/a" {
		t.Fatalf("results not in input order: %+v", got)
	}
	if got[2].Err == nil || got[2].Err.Kind != ErrorKindNotFound {
		t.Fatalf("expected not_found, got %+v", got[2])
	}
}

func TestReadResponseRejectsCountMismatch(t *testing.T) {
	var response bytes.Buffer
	if err := writeResponse(&response, nil); err != nil {
		t.Fatalf("writeResponse: %v", err)
	}

	if _, err := readResponse(&response, 1); err == nil {
		t.Fatal("expected error on count mismatch")
	}
}
