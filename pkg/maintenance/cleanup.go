/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"os"

	"github.com/containerd/containerd/log"

	"github.com/iorap-project/iorapd/pkg/errdefs"
	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/store"
)

// cleanUpFilesForActivity removes every raw trace and the compiled trace
// (both the on-disk file and its DB row) belonging to vcn. Grounded on
// db/clean_up.cc's CleanUpFilesForActivity.
func cleanUpFilesForActivity(db *store.Database, vcn models.VersionedComponentName) {
	traces, err := db.SelectRawTracesByVersionedComponentName(vcn)
	if err != nil {
		log.L.Warnf("maintenance: select raw traces for %s: %v", vcn, err)
	}
	for _, rt := range traces {
		if err := os.Remove(rt.FilePath); err != nil && !os.IsNotExist(err) {
			log.L.Warnf("maintenance: remove raw trace %s: %v", rt.FilePath, err)
		}
		if err := db.DeleteRawTrace(rt.ID); err != nil {
			log.L.Warnf("maintenance: delete raw_traces row %d: %v", rt.ID, err)
		}
	}

	prefetchFile, err := db.SelectPrefetchFileByVersionedComponentName(vcn)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			log.L.Warnf("maintenance: select prefetch file for %s: %v", vcn, err)
		}
		return
	}
	if err := os.Remove(prefetchFile.FilePath); err != nil && !os.IsNotExist(err) {
		log.L.Warnf("maintenance: remove compiled trace %s: %v", prefetchFile.FilePath, err)
	}
	if err := db.DeletePrefetchFile(prefetchFile.ID); err != nil {
		log.L.Warnf("maintenance: delete prefetch_files row %d: %v", prefetchFile.ID, err)
	}
}

// CleanUpFilesForPackage removes every activity's raw/compiled trace under
// one (package_id, package_name, version), then deletes the package row
// itself (which cascades to its activities and their histories). Grounded
// on db/clean_up.cc's CleanUpFilesForPackage + PackageModel::Delete.
func CleanUpFilesForPackage(db *store.Database, pkg models.Package) error {
	activities, err := db.SelectActivitiesByPackageID(pkg.ID)
	if err != nil {
		return err
	}
	for _, activity := range activities {
		vcn := models.VersionedComponentName{Package: pkg.Name, Activity: activity.Name, Version: pkg.Version}
		cleanUpFilesForActivity(db, vcn)
	}
	return db.DeletePackage(pkg.ID)
}
