/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package trace

import (
	"testing"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/models"
)

func TestEncodeDecodeRawTraceRoundTrip(t *testing.T) {
	pfn := uint64(555)
	events := []models.PageCacheEvent{
		{
			Inode:          models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 4242},
			PID:            123,
			Timestamp:      7641303,
			AddToPageCache: true,
			Index:          540 * uint64(constant.PageSize),
			PFN:            &pfn,
		},
		{
			Inode:          models.InodeKey{DeviceMajor: 8, DeviceMinor: 1, Inode: 4242},
			PID:            123,
			Timestamp:      7700000,
			AddToPageCache: false,
			Index:          540 * uint64(constant.PageSize),
		},
	}

	encoded := EncodeRawTrace(events)
	decoded, err := DecodeRawTrace(encoded)
	if err != nil {
		t.Fatalf("DecodeRawTrace: %v", err)
	}

	if len(decoded) != len(events) {
		t.Fatalf("got %d events, want %d", len(decoded), len(events))
	}
	for i, want := range events {
		got := decoded[i]
		if got.Inode != want.Inode || got.Timestamp != want.Timestamp ||
			got.AddToPageCache != want.AddToPageCache || got.Index != want.Index || got.PID != want.PID {
			t.Fatalf("event %d: got %+v, want %+v", i, got, want)
		}
	}
	if decoded[0].PFN == nil || *decoded[0].PFN != pfn {
		t.Fatalf("expected pfn %d preserved, got %+v", pfn, decoded[0].PFN)
	}
}

func TestJoinDevTInvertsSplitDevT(t *testing.T) {
	for _, dev := range []uint64{0, 0xff00, 0x800001, 1<<40 | 0x123} {
		major, minor := splitDevT(dev)
		got := joinDevT(major, minor)
		if got != dev {
			t.Fatalf("dev %#x: round trip gave %#x (major=%d minor=%d)", dev, got, major, minor)
		}
	}
}
