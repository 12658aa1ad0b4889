/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iorap-project/iorapd/pkg/launch"
	"github.com/iorap-project/iorapd/pkg/store"
)

func TestRefreshPackageVersionsDropsStalePackage(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDatabase(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.SelectOrInsertActivity("com.old", 1, "com.old.Main")
	require.NoError(t, err)
	_, err = db.SelectOrInsertActivity("com.current", 2, "com.current.Main")
	require.NoError(t, err)

	versions := launch.StaticVersionLookup{"com.old": 2, "com.current": 2}
	require.NoError(t, RefreshPackageVersions(db, versions))

	_, err = db.SelectPackageByNameAndVersion("com.old", 1)
	require.Error(t, err)

	_, err = db.SelectPackageByNameAndVersion("com.current", 2)
	require.NoError(t, err)
}

func TestRefreshPackageVersionsSkipsUnknownPackage(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDatabase(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.SelectOrInsertActivity("com.uninstalled", 1, "com.uninstalled.Main")
	require.NoError(t, err)

	versions := launch.StaticVersionLookup{}
	require.NoError(t, RefreshPackageVersions(db, versions))

	_, err = db.SelectPackageByNameAndVersion("com.uninstalled", 1)
	require.NoError(t, err)
}
