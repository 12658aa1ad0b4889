/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package prefetcher

import (
	"context"
	"os"

	"github.com/containerd/containerd/log"

	"github.com/iorap-project/iorapd/pkg/control"
	"github.com/iorap-project/iorapd/pkg/models"
)

// ParseStrategy maps the `iorapd.readahead.strategy` system property
// (spec.md §6) onto an EntryKind, defaulting to fadvise for an empty or
// unrecognized value exactly as GetPrefetchStrategy does in read_ahead.cc.
func ParseStrategy(raw string) models.EntryKind {
	switch raw {
	case "mmap":
		return models.EntryKindMmapLocked
	case "mlock":
		return models.EntryKindMmapLock
	case "fadvise", "":
		return models.EntryKindFadvise
	default:
		return models.EntryKindFadvise
	}
}

// Dispatcher drives a decoded control.Command stream against an Engine,
// the session-engine half of the control protocol (spec.md §4.4 + §4.5):
// every Command variant maps onto exactly one Engine method. Strategy picks
// the readahead kind used for bare ReadAhead commands that don't carry
// their own Kind (the wire format always carries one; Strategy only backs
// CreateFdSession's trace-driven playback, which has no per-entry kind).
type Dispatcher struct {
	Engine   *Engine
	Strategy models.EntryKind
}

// NewDispatcher wires an Engine and a default readahead strategy together.
func NewDispatcher(engine *Engine, strategy models.EntryKind) *Dispatcher {
	return &Dispatcher{Engine: engine, Strategy: strategy}
}

// ErrExit is returned by Dispatch when it decodes an Exit command, so the
// caller's read loop knows to stop after tearing the engine down.
var ErrExit = exitSignal{}

type exitSignal struct{}

func (exitSignal) Error() string { return "control: exit requested" }

// Dispatch executes one decoded Command against d.Engine and returns
// whatever error the Engine method returns (unknown session, duplicate
// session id, unreadable or corrupt fd trace). A failed readahead on a
// known path is recorded by the Engine, not returned; destroying an
// unknown session is not an error; unknown variants are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd control.Command) error {
	switch cmd.Variant {
	case control.VariantCreateSession:
		return d.Engine.CreateSession(cmd.SessionID, cmd.Description)

	case control.VariantCreateFdSession:
		fd := os.NewFile(uintptr(cmd.Fd), cmd.Description)
		return d.Engine.CreateFdSession(cmd.SessionID, cmd.Description, fd, d.Strategy)

	case control.VariantRegisterFilePath:
		return d.Engine.RegisterFilePath(cmd.SessionID, cmd.PathID, cmd.Path)

	case control.VariantUnregisterFilePath:
		return d.Engine.UnregisterFilePath(cmd.SessionID, cmd.PathID)

	case control.VariantReadAhead:
		_, err := d.Engine.ReadAhead(cmd.SessionID, cmd.PathID, cmd.Kind, int64(cmd.Length), int64(cmd.Offset))
		return err

	case control.VariantDestroySession:
		return d.Engine.DestroySession(cmd.SessionID)

	case control.VariantDumpSession:
		out, err := d.Engine.DumpSession(cmd.SessionID)
		if err != nil {
			return err
		}
		log.G(ctx).Info(out)
		return nil

	case control.VariantDumpEverything:
		log.G(ctx).Info(d.Engine.DumpEverything())
		return nil

	case control.VariantExit:
		d.Engine.Exit()
		return ErrExit

	default:
		return nil
	}
}
