/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package trace

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/models"
)

// Wire field numbers for the raw trace buffer, a simplified representation
// of the ftrace mm_filemap tracepoints sufficient for iorapd's own
// emitted/consumed fixtures (spec.md §3 "Trace buffer protobuf"). This is
// not a reimplementation of perfetto's full trace.proto schema — only the
// subset (Trace.packet, TracePacket.ftrace_events, FtraceEventBundle.cpu/
// event, FtraceEvent.timestamp/pid/mm_filemap_*) this daemon reads.
const (
	fieldTracePacket = 1 // Trace.packet, repeated

	fieldPacketFtraceEvents = 1 // TracePacket.ftrace_events

	fieldBundleCPU   = 1 // FtraceEventBundle.cpu
	fieldBundleEvent = 2 // FtraceEventBundle.event, repeated

	fieldEventTimestamp = 1 // FtraceEvent.timestamp
	fieldEventPID       = 2 // FtraceEvent.pid
	fieldEventAdd       = 3 // FtraceEvent.mm_filemap_add_to_page_cache
	fieldEventDelete    = 4 // FtraceEvent.mm_filemap_delete_from_page_cache

	fieldFilemapPFN   = 1 // MmFilemapEvent.pfn, optional
	fieldFilemapIndex = 2 // MmFilemapEvent.index (page number, not byte offset)
	fieldFilemapDev   = 3 // MmFilemapEvent.s_dev (encodes major/minor)
	fieldFilemapIno   = 4 // MmFilemapEvent.i_ino
	fieldFilemapPage  = 5 // MmFilemapEvent.page, optional diagnostic pointer
)

// DecodeRawTrace parses a raw trace buffer into a flat list of page cache
// events in wire order, annotated with each event's CPU and absolute
// timestamp. The compiler derives TimestampRelative by subtracting the
// minimum timestamp observed across the whole trace (spec.md §3 "derived
// timestamp_relative (ns from trace start)"), not by this decoder, since
// that requires seeing every event first.
func DecodeRawTrace(data []byte) ([]models.PageCacheEvent, error) {
	var events []models.PageCacheEvent

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "consume trace tag")
		}
		data = data[n:]

		if num != fieldTracePacket {
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
			continue
		}

		packet, rest, err := consumeBytesField(data, typ)
		if err != nil {
			return nil, err
		}
		data = rest

		decoded, err := decodeTracePacket(packet)
		if err != nil {
			return nil, err
		}
		events = append(events, decoded...)
	}

	return events, nil
}

func decodeTracePacket(data []byte) ([]models.PageCacheEvent, error) {
	var events []models.PageCacheEvent
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "consume packet tag")
		}
		data = data[n:]

		if num != fieldPacketFtraceEvents {
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
			continue
		}

		bundle, rest, err := consumeBytesField(data, typ)
		if err != nil {
			return nil, err
		}
		data = rest

		decoded, err := decodeFtraceEventBundle(bundle)
		if err != nil {
			return nil, err
		}
		events = append(events, decoded...)
	}
	return events, nil
}

func decodeFtraceEventBundle(data []byte) ([]models.PageCacheEvent, error) {
	var cpu int32
	var events []models.PageCacheEvent

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "consume bundle tag")
		}
		data = data[n:]

		switch num {
		case fieldBundleCPU:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "consume cpu")
			}
			cpu = int32(v)
			data = data[n:]
		case fieldBundleEvent:
			raw, rest, err := consumeBytesField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest

			ev, err := decodeFtraceEvent(raw)
			if err != nil {
				return nil, err
			}
			ev.CPU = cpu
			events = append(events, ev)
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
		}
	}
	return events, nil
}

func decodeFtraceEvent(data []byte) (models.PageCacheEvent, error) {
	var ev models.PageCacheEvent
	haveAdd, haveDelete := false, false

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ev, errors.Wrap(protowire.ParseError(n), "consume event tag")
		}
		data = data[n:]

		switch num {
		case fieldEventTimestamp:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ev, errors.Wrap(protowire.ParseError(n), "consume timestamp")
			}
			ev.Timestamp = v
			data = data[n:]
		case fieldEventPID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ev, errors.Wrap(protowire.ParseError(n), "consume pid")
			}
			ev.PID = int32(v)
			data = data[n:]
		case fieldEventAdd, fieldEventDelete:
			raw, rest, err := consumeBytesField(data, typ)
			if err != nil {
				return ev, err
			}
			data = rest

			if err := decodeFilemapEvent(raw, &ev); err != nil {
				return ev, err
			}
			if num == fieldEventAdd {
				haveAdd = true
			} else {
				haveDelete = true
			}
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return ev, err
			}
			data = rest
		}
	}

	if haveAdd == haveDelete {
		return ev, errors.New("ftrace event must carry exactly one of mm_filemap_add_to_page_cache or mm_filemap_delete_from_page_cache")
	}
	ev.AddToPageCache = haveAdd
	return ev, nil
}

func decodeFilemapEvent(data []byte, ev *models.PageCacheEvent) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "consume filemap event tag")
		}
		data = data[n:]

		switch num {
		case fieldFilemapPFN:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "consume pfn")
			}
			pfn := v
			ev.PFN = &pfn
			data = data[n:]
		case fieldFilemapIndex:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "consume index")
			}
			ev.Index = v * uint64(constant.PageSize)
			data = data[n:]
		case fieldFilemapDev:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "consume dev")
			}
			ev.Inode.DeviceMajor, ev.Inode.DeviceMinor = splitDevT(v)
			data = data[n:]
		case fieldFilemapIno:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "consume ino")
			}
			ev.Inode.Inode = v
			data = data[n:]
		case fieldFilemapPage:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "consume page")
			}
			page := v
			ev.Page = &page
			data = data[n:]
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return err
			}
			data = rest
		}
	}
	return nil
}

// splitDevT decodes a glibc-style dev_t into (major, minor), matching the
// encoding the kernel's mm_filemap tracepoints use for i_sb->s_dev.
func splitDevT(dev uint64) (major, minor uint32) {
	major = uint32((dev >> 8) & 0xfff) | uint32((dev>>32)&^0xfff)
	minor = uint32(dev&0xff) | uint32((dev>>12)&^0xff)
	return major, minor
}
