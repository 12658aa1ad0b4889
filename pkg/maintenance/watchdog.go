/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/internal/constant"
)

// runWithWatchdog starts binary with args and kills it with SIGKILL if it
// hasn't exited within timeout. This is the Go stand-in for
// controller.cc's StartViaFork+SetTimeoutWatchDog: Go has no portable raw
// fork(), so a child process is started the same way the teacher starts
// nydusd (exec.Command), and the watchdog thread becomes a goroutine that
// ticks until the deadline and kills the child then, instead of spinning
// on kill(pid, 0).
func runWithWatchdog(ctx context.Context, binary string, args []string, timeout time.Duration) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s", binary)
	}

	done := make(chan struct{})
	timedOut := make(chan struct{})
	go watchdog(cmd, timeout, done, timedOut)

	err := cmd.Wait()
	close(done)

	select {
	case <-timedOut:
		return errors.Errorf("%s timed out after %s and was killed", binary, timeout)
	default:
	}

	if err != nil {
		return errors.Wrapf(err, "%s failed", binary)
	}
	return nil
}

func watchdog(cmd *exec.Cmd, timeout time.Duration, done, timedOut chan struct{}) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(constant.CompilerWatchdogPollIntervalMs * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				select {
				case <-done:
					return
				default:
				}
				log.L.Infof("process %d timed out, sending SIGKILL", cmd.Process.Pid)
				close(timedOut)
				_ = cmd.Process.Kill()
				return
			}
		}
	}
}
