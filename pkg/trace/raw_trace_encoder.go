/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package trace

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/models"
)

// EncodeRawTrace serializes events into the raw trace wire format
// DecodeRawTrace reads back, as a single TracePacket carrying one
// FtraceEventBundle (the trace capture side of C1, writing what the kernel
// producer emitted during a launch's tracing window; see spec.md §6
// "Raw trace file format").
func EncodeRawTrace(events []models.PageCacheEvent) []byte {
	var bundle []byte
	for _, ev := range events {
		bundle = appendTag(bundle, fieldBundleEvent, protowire.BytesType)
		bundle = protowire.AppendBytes(bundle, encodeFtraceEvent(ev))
	}

	var packet []byte
	packet = appendTag(packet, fieldPacketFtraceEvents, protowire.BytesType)
	packet = protowire.AppendBytes(packet, bundle)

	var out []byte
	out = appendTag(out, fieldTracePacket, protowire.BytesType)
	out = protowire.AppendBytes(out, packet)
	return out
}

func encodeFtraceEvent(ev models.PageCacheEvent) []byte {
	var buf []byte

	buf = appendTag(buf, fieldEventTimestamp, protowire.VarintType)
	buf = protowire.AppendVarint(buf, ev.Timestamp)

	buf = appendTag(buf, fieldEventPID, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(ev.PID))

	field := fieldEventDelete
	if ev.AddToPageCache {
		field = fieldEventAdd
	}
	buf = appendTag(buf, field, protowire.BytesType)
	buf = protowire.AppendBytes(buf, encodeFilemapEvent(ev))

	return buf
}

func encodeFilemapEvent(ev models.PageCacheEvent) []byte {
	var buf []byte

	if ev.PFN != nil {
		buf = appendTag(buf, fieldFilemapPFN, protowire.VarintType)
		buf = protowire.AppendVarint(buf, *ev.PFN)
	}

	buf = appendTag(buf, fieldFilemapIndex, protowire.VarintType)
	buf = protowire.AppendVarint(buf, ev.Index/uint64(constant.PageSize))

	buf = appendTag(buf, fieldFilemapDev, protowire.VarintType)
	buf = protowire.AppendVarint(buf, joinDevT(ev.Inode.DeviceMajor, ev.Inode.DeviceMinor))

	buf = appendTag(buf, fieldFilemapIno, protowire.VarintType)
	buf = protowire.AppendVarint(buf, ev.Inode.Inode)

	if ev.Page != nil {
		buf = appendTag(buf, fieldFilemapPage, protowire.VarintType)
		buf = protowire.AppendVarint(buf, *ev.Page)
	}

	return buf
}

func appendTag(buf []byte, num int, typ protowire.Type) []byte {
	return protowire.AppendTag(buf, protowire.Number(num), typ)
}

// joinDevT is the inverse of splitDevT, reconstructing a dev_t from its
// (major, minor) halves using the same glibc gnu_dev_makedev formula.
func joinDevT(major, minor uint32) uint64 {
	return (uint64(minor) & 0xff) | (uint64(major&0xfff) << 8) |
		((uint64(minor) &^ 0xff) << 12) | (uint64(major&^0xfff) << 32)
}
