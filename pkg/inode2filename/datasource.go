/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import "context"

// DataSourceKind selects which backing data source EmitInodes reads from
// (spec.md §4.2).
type DataSourceKind int

const (
	DataSourceKindDiskScan DataSourceKind = iota
	DataSourceKindTextCache
	DataSourceKindBPF
)

func (k DataSourceKind) String() string {
	switch k {
	case DataSourceKindDiskScan:
		return "disk-scan"
	case DataSourceKindTextCache:
		return "text-cache"
	case DataSourceKindBPF:
		return "bpf"
	default:
		return "unknown"
	}
}

// DataSource enumerates every (inode, filename) pair it knows about. The
// specific ordering and completeness guarantees depend on the concrete
// source (spec.md §4.2 variants a/b/c).
type DataSource interface {
	Kind() DataSourceKind

	// EmitInodes streams every inode->filename mapping known to this
	// source onto results, and closes results when done or ctx is
	// cancelled. The result ordering is source-specific.
	EmitInodes(ctx context.Context, results chan<- InodeResult)

	// ResultIncludesDeviceNumber reports whether EmitInodes populates
	// DeviceMajor/DeviceMinor. The Resolver does not consult it; every
	// DataSource in this package returns true.
	ResultIncludesDeviceNumber() bool
}

// DefaultDiskScanRoots are the directories the disk-scan data source walks
// when no override is configured (spec.md §4.2).
var DefaultDiskScanRoots = []string{
	"/system",
	"/apex",
	"/data",
	"/vendor",
	"/product",
	"/metadata",
}
