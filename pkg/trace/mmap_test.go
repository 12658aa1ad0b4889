/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package trace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFileMappedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pb")
	want := []byte("hello compiled trace")

	require.NoError(t, WriteFileMapped(path, want))

	got, err := ReadFileMapped(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestReadFileMappedEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pb")
	require.NoError(t, WriteFileMapped(path, nil))

	got, err := ReadFileMapped(path)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadFileMappedMissingFile(t *testing.T) {
	_, err := ReadFileMapped(filepath.Join(t.TempDir(), "does-not-exist.pb"))
	require.Error(t, err)
}
