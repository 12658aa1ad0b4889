/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package prefetcher

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/pkg/control"
	"github.com/iorap-project/iorapd/pkg/models"
)

// SessionEngine is the subset of *Engine's method set that a caller needs to
// drive one session's lifecycle, whether the engine lives in this process or
// out-of-process behind the control protocol (spec.md §4.4's "in-process or
// out-of-process" split). *Engine satisfies this directly; RemoteEngine
// satisfies it by forwarding each call as a control.Command.
type SessionEngine interface {
	CreateSession(sid uint32, description string) error
	CreateFdSession(sid uint32, description string, fd io.ReadCloser, kind models.EntryKind) error
	RegisterFilePath(sid, pathID uint32, path string) error
	UnregisterFilePath(sid, pathID uint32) error
	ReadAhead(sid, pathID uint32, kind models.EntryKind, length, offset int64) (bool, error)
	DestroySession(sid uint32) error
}

// CommandSender is the common Send method of PipeEncoder and SocketEncoder.
type CommandSender interface {
	Send(cmd control.Command) error
}

// RemoteEngine is a SessionEngine that forwards every call as a
// control-protocol frame instead of touching local session state, the
// out-of-process counterpart of Engine (spec.md §4.4/§4.5: iorap-prefetcherd
// hosts the real Engine; iorapd holds a RemoteEngine pointed at its socket).
type RemoteEngine struct {
	sender CommandSender
}

// NewRemoteEngine wraps sender, the encoder half of an already-connected
// control-protocol transport to a running session engine process.
func NewRemoteEngine(sender CommandSender) *RemoteEngine {
	return &RemoteEngine{sender: sender}
}

func (r *RemoteEngine) CreateSession(sid uint32, description string) error {
	return r.sender.Send(control.CreateSession(sid, description))
}

// CreateFdSession requires fd to be backed by a real descriptor (*os.File):
// the socket transport passes it over SCM_RIGHTS, which has no analogue for
// an arbitrary io.ReadCloser. fd is always closed before returning, mirroring
// Engine.CreateFdSession's ownership contract.
func (r *RemoteEngine) CreateFdSession(sid uint32, description string, fd io.ReadCloser, _ models.EntryKind) error {
	defer fd.Close()

	f, ok := fd.(*os.File)
	if !ok {
		return errors.New("remote session engine: CreateFdSession requires an *os.File descriptor")
	}
	return r.sender.Send(control.CreateFdSession(sid, description, int(f.Fd())))
}

func (r *RemoteEngine) RegisterFilePath(sid, pathID uint32, path string) error {
	return r.sender.Send(control.RegisterFilePath(sid, pathID, path))
}

func (r *RemoteEngine) UnregisterFilePath(sid, pathID uint32) error {
	return r.sender.Send(control.UnregisterFilePath(sid, pathID))
}

// ReadAhead is fire-and-forget over the wire (spec.md §4.5 defines no
// acknowledgement frame), so success here only reflects whether the command
// was sent, not whether the remote readahead actually hit the cache.
func (r *RemoteEngine) ReadAhead(sid, pathID uint32, kind models.EntryKind, length, offset int64) (bool, error) {
	err := r.sender.Send(control.ReadAhead(sid, pathID, kind, uint64(length), uint64(offset)))
	return err == nil, err
}

func (r *RemoteEngine) DestroySession(sid uint32) error {
	return r.sender.Send(control.DestroySession(sid))
}
