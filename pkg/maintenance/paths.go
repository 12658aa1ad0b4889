/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"path/filepath"
	"strconv"

	"github.com/iorap-project/iorapd/pkg/models"
)

// compiledTraceDir and compiledTracePath lay out a package/activity's
// compiled trace the way CompiledTraceFileModel::BaseDir/FilePath does:
// <root>/<package>/<version>/<activity>/compiled_traces/compiled_trace.pb.
func compiledTraceDir(root string, vcn models.VersionedComponentName) string {
	return filepath.Join(root, vcn.Package, strconv.Itoa(vcn.Version), vcn.Activity, "compiled_traces")
}

func compiledTracePath(root string, vcn models.VersionedComponentName) string {
	return filepath.Join(compiledTraceDir(root, vcn), "compiled_trace.pb")
}
