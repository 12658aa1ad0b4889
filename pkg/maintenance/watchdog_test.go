/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunWithWatchdogSucceeds(t *testing.T) {
	err := runWithWatchdog(context.Background(), "/bin/sh", []string{"-c", "exit 0"}, time.Second)
	require.NoError(t, err)
}

func TestRunWithWatchdogPropagatesFailure(t *testing.T) {
	err := runWithWatchdog(context.Background(), "/bin/sh", []string{"-c", "exit 7"}, time.Second)
	require.Error(t, err)
}

func TestRunWithWatchdogKillsOnTimeout(t *testing.T) {
	start := time.Now()
	err := runWithWatchdog(context.Background(), "/bin/sh", []string{"-c", "sleep 5"}, 50*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
	require.Less(t, time.Since(start), 4*time.Second)
}
