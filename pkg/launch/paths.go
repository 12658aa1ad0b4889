/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package launch

import (
	"path/filepath"
	"strconv"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/models"
)

// rawTraceDir returns <root>/<package>/<version>/<activity>/raw_traces,
// the on-disk layout spec.md §4.7 assigns raw perfetto trace files
// (mirrors PerfettoTraceFileModel's path scheme).
func rawTraceDir(root string, vcn models.VersionedComponentName) string {
	return filepath.Join(root, vcn.Package, strconv.Itoa(vcn.Version), vcn.Activity, "raw_traces")
}

// rawTracePath returns the path a raw trace captured at timestampNs is
// written to. pruneOldTraces (pipeline.go) orders traces by raw_traces row
// id, not by this file name.
func rawTracePath(root string, vcn models.VersionedComponentName, timestampNs uint64) string {
	return filepath.Join(rawTraceDir(root, vcn), strconv.FormatUint(timestampNs, 10)+".perfetto_trace.pb")
}

// prebuiltCompiledTracePath returns the fallback location iorapd checks for
// a compiled trace shipped with the OS image when the database has none, spec.md
// §4.7 "prebuilt-on-disk fallback": /product/iorap-trace/<enc_pkg>.compiled_trace.pb.
func prebuiltCompiledTracePath(pkg string) string {
	return filepath.Join(constant.PrebuiltTraceDir, models.EncodePackageNameForPath(pkg)+".compiled_trace.pb")
}
