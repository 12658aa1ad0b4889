/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"github.com/containerd/containerd/log"

	"github.com/iorap-project/iorapd/pkg/launch"
	"github.com/iorap-project/iorapd/pkg/store"
)

// RefreshPackageVersions walks every package row and drops the ones whose
// installed version has moved on (or that the package manager no longer
// knows about at all): a stale version can never gain new eligible traces,
// so its files and rows are purged rather than left to accumulate.
// Grounded on maintenance/db_cleaner.cc's CleanUpDatabase.
func RefreshPackageVersions(db *store.Database, versions launch.VersionLookup) error {
	packages, err := db.SelectAllPackages()
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		current, ok := versions.Version(pkg.Name)
		if !ok {
			log.L.Debugf("maintenance: no version for package %s (version %d); package manager may be down, skipping", pkg.Name, pkg.Version)
			continue
		}
		if current == pkg.Version {
			continue
		}
		log.L.Infof("maintenance: package %s moved from version %d to %d, cleaning up stale rows", pkg.Name, pkg.Version, current)
		if err := CleanUpFilesForPackage(db, pkg); err != nil {
			log.L.Warnf("maintenance: clean up stale package %s@%d: %v", pkg.Name, pkg.Version, err)
		}
	}
	return nil
}
