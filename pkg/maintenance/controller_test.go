/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iorap-project/iorapd/config"
	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/store"
)

// fakeCompilerScript writes a shell script standing in for
// iorap.cmd.compiler: it scans its argv for --output-proto and writes a
// marker file at the path that follows, the only behavior CompileActivity
// depends on.
func fakeCompilerScript(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-compiler.sh")
	script := "#!/bin/sh\n" +
		"prev=\"\"\n" +
		"for arg in \"$@\"; do\n" +
		"  if [ \"$prev\" = \"--output-proto\" ]; then\n" +
		"    echo compiled > \"$arg\"\n" +
		"  fi\n" +
		"  prev=\"$arg\"\n" +
		"done\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestHistory(t *testing.T, db *store.Database, activityID int64, intentStartedNs, totalTimeNs uint64) *models.AppLaunchHistory {
	t.Helper()
	history, err := db.InsertAppLaunchHistory(models.AppLaunchHistory{
		ActivityID:      activityID,
		Temperature:     models.TemperatureCold,
		TraceEnabled:    true,
		IntentStartedNs: &intentStartedNs,
		TotalTimeNs:     &totalTimeNs,
	})
	require.NoError(t, err)
	return history
}

func TestCompileActivityWritesPrefetchFile(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDatabase(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	activity, err := db.SelectOrInsertActivity("com.foo", 1, "com.foo.Main")
	require.NoError(t, err)

	rawTracePath := filepath.Join(dir, "raw.perfetto_trace.pb")
	require.NoError(t, os.WriteFile(rawTracePath, []byte("raw"), 0644))

	history := newTestHistory(t, db, activity.ID, 1, 500)
	_, err = db.InsertRawTrace(history.ID, rawTracePath)
	require.NoError(t, err)

	ps := config.NewPropertyStore(map[string]string{})
	c := NewController(db, ps)

	params := Params{
		CompilerBinaryPath: fakeCompilerScript(t, dir),
		CompilerTimeout:    time.Second,
		MinTraces:          1,
		RootDir:            dir,
	}
	require.NoError(t, c.CompileActivity(context.Background(), activity.PackageID, "com.foo", "com.foo.Main", 1, params))
	require.Equal(t, 1, c.ActivitiesCompiledLastRun())

	pf, err := db.SelectPrefetchFileByVersionedComponentName(models.VersionedComponentName{
		Package: "com.foo", Activity: "com.foo.Main", Version: 1,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(pf.FilePath)
	require.NoError(t, err)
	require.Equal(t, "compiled\n", string(got))
}

func TestCompileActivitySkipsBelowMinTraces(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDatabase(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	activity, err := db.SelectOrInsertActivity("com.bar", 1, "com.bar.Main")
	require.NoError(t, err)

	ps := config.NewPropertyStore(map[string]string{})
	c := NewController(db, ps)

	params := Params{
		CompilerBinaryPath: fakeCompilerScript(t, dir),
		CompilerTimeout:    time.Second,
		MinTraces:          1,
		RootDir:            dir,
	}
	require.NoError(t, c.CompileActivity(context.Background(), activity.PackageID, "com.bar", "com.bar.Main", 1, params))
	require.Equal(t, 0, c.ActivitiesCompiledLastRun())

	_, err = db.SelectPrefetchFileByVersionedComponentName(models.VersionedComponentName{
		Package: "com.bar", Activity: "com.bar.Main", Version: 1,
	})
	require.Error(t, err)
}

func TestCompileActivitySkipsWhenAlreadyCompiled(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDatabase(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	activity, err := db.SelectOrInsertActivity("com.baz", 1, "com.baz.Main")
	require.NoError(t, err)

	outputPath := compiledTracePath(dir, models.VersionedComponentName{Package: "com.baz", Activity: "com.baz.Main", Version: 1})
	require.NoError(t, os.MkdirAll(filepath.Dir(outputPath), 0755))
	require.NoError(t, os.WriteFile(outputPath, []byte("already compiled"), 0644))
	_, err = db.UpsertPrefetchFile(activity.ID, outputPath)
	require.NoError(t, err)

	ps := config.NewPropertyStore(map[string]string{})
	c := NewController(db, ps)

	// CompilerBinaryPath deliberately points nowhere: CompileActivity must
	// never invoke it when an up to date prefetch_files row already exists.
	params := Params{
		CompilerBinaryPath: "/does/not/exist",
		CompilerTimeout:    time.Second,
		MinTraces:          1,
		RootDir:            dir,
	}
	require.NoError(t, c.CompileActivity(context.Background(), activity.PackageID, "com.baz", "com.baz.Main", 1, params))

	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "already compiled", string(got))
}

func TestCompilePackageCompilesAllActivities(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDatabase(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a1, err := db.SelectOrInsertActivity("com.multi", 1, "com.multi.One")
	require.NoError(t, err)
	a2, err := db.SelectOrInsertActivity("com.multi", 1, "com.multi.Two")
	require.NoError(t, err)

	for _, a := range []*models.Activity{a1, a2} {
		rawTracePath := filepath.Join(dir, a.Name+".perfetto_trace.pb")
		require.NoError(t, os.WriteFile(rawTracePath, []byte("raw"), 0644))
		history := newTestHistory(t, db, a.ID, 1, 500)
		_, err = db.InsertRawTrace(history.ID, rawTracePath)
		require.NoError(t, err)
	}

	ps := config.NewPropertyStore(map[string]string{})
	c := NewController(db, ps)
	params := Params{
		CompilerBinaryPath: fakeCompilerScript(t, dir),
		CompilerTimeout:    time.Second,
		MinTraces:          1,
		RootDir:            dir,
	}
	require.NoError(t, c.CompilePackage(context.Background(), "com.multi", 1, params))

	for _, a := range []*models.Activity{a1, a2} {
		_, err := db.SelectPrefetchFileByVersionedComponentName(models.VersionedComponentName{
			Package: "com.multi", Activity: a.Name, Version: 1,
		})
		require.NoError(t, err)
	}
}
