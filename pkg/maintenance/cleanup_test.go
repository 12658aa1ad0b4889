/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/store"
)

func TestCleanUpFilesForPackageRemovesEverything(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDatabase(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	activity, err := db.SelectOrInsertActivity("com.stale", 1, "com.stale.Main")
	require.NoError(t, err)

	rawTracePath := filepath.Join(dir, "raw.perfetto_trace.pb")
	require.NoError(t, os.WriteFile(rawTracePath, []byte("raw"), 0644))
	history, err := db.InsertAppLaunchHistory(models.AppLaunchHistory{ActivityID: activity.ID, Temperature: models.TemperatureCold, TraceEnabled: true})
	require.NoError(t, err)
	_, err = db.InsertRawTrace(history.ID, rawTracePath)
	require.NoError(t, err)

	compiledPath := filepath.Join(dir, "compiled.pb")
	require.NoError(t, os.WriteFile(compiledPath, []byte("compiled"), 0644))
	_, err = db.UpsertPrefetchFile(activity.ID, compiledPath)
	require.NoError(t, err)

	pkg, err := db.SelectPackageByNameAndVersion("com.stale", 1)
	require.NoError(t, err)

	require.NoError(t, CleanUpFilesForPackage(db, *pkg))

	_, err = os.Stat(rawTracePath)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(compiledPath)
	require.True(t, os.IsNotExist(err))

	_, err = db.SelectPackageByNameAndVersion("com.stale", 1)
	require.Error(t, err)
}
