/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package prefetcher is the prefetch session engine (spec.md §4.4, C4): it
// owns descriptors and mmap/mlock mappings on behalf of zero or more
// in-flight Sessions and issues the fadvise/mmap/mlock syscalls that pull
// pages into the cache, grounded on
// original_source/system/iorap/src/prefetcher/{session,read_ahead}.cc.
package prefetcher

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/pkg/errdefs"
	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/prefetcher/metrics"
	"github.com/iorap-project/iorapd/pkg/trace"
)

// Engine hosts every live Session in one process (spec.md §4.4 "A process
// hosting zero or more sessions"). The zero value is not usable; use New.
type Engine struct {
	mu       sync.Mutex
	sessions map[uint32]*models.Session
}

// New returns an Engine with no sessions.
func New() *Engine {
	return &Engine{sessions: make(map[uint32]*models.Session)}
}

// CreateSession registers an empty session under sid. Fails if sid is
// already in use (spec.md §4.4 "fail if sid already exists").
func (e *Engine) CreateSession(sid uint32, description string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[sid]; ok {
		return errors.Wrapf(errdefs.ErrAlreadyExists, "session %d", sid)
	}
	e.sessions[sid] = models.NewSession(sid, description, time.Now())
	metrics.SessionsCreated.Inc()
	return nil
}

// CreateFdSession creates sid and immediately plays back the compiled trace
// read from fd: every index entry becomes a RegisterFilePath, every list
// entry becomes one ReadAhead, both in file order (spec.md §4.4
// "CreateFdSession"). The descriptor is always closed before returning.
func (e *Engine) CreateFdSession(sid uint32, description string, fd io.ReadCloser, kind models.EntryKind) error {
	defer fd.Close()

	if err := e.CreateSession(sid, description); err != nil {
		return err
	}

	data, err := io.ReadAll(fd)
	if err != nil {
		return errors.Wrapf(err, "read compiled trace fd for session %d", sid)
	}

	compiled, err := trace.DecodeCompiledTrace(data)
	if err != nil {
		return errors.Wrapf(err, "decode compiled trace fd for session %d, corrupted protobuf?", sid)
	}

	for _, idx := range compiled.Index {
		if idx.ID < 0 {
			continue // negative ids are illegal; skip rather than abort (session.cc parity).
		}
		if err := e.RegisterFilePath(sid, uint32(idx.ID), idx.FileName); err != nil {
			return err
		}
	}

	for _, entry := range compiled.List {
		if entry.FileLengthBytes < 0 || entry.FileOffsetBytes < 0 {
			continue
		}
		// Errors are per-entry, not fatal: a bad path_id or closed fd just
		// counts as a failed readahead (spec.md §4.4 ReadAhead semantics).
		_, _ = e.ReadAhead(sid, uint32(entry.IndexID), kind, entry.FileLengthBytes, entry.FileOffsetBytes)
	}

	return nil
}

// RegisterFilePath opens path for sid and records it under pathID, even if
// the open fails (spec.md §4.4 "RegisterFilePath").
func (e *Engine) RegisterFilePath(sid, pathID uint32, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sid]
	if !ok {
		return errors.Wrapf(errdefs.ErrNotFound, "session %d", sid)
	}
	registerFilePath(s, pathID, path)
	metrics.ObserveRegisterFilePath(s.FDMap[pathID] >= 0)
	return nil
}

// UnregisterFilePath unmaps and closes pathID's descriptor and forgets it.
func (e *Engine) UnregisterFilePath(sid, pathID uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sid]
	if !ok {
		return errors.Wrapf(errdefs.ErrNotFound, "session %d", sid)
	}
	if !unregisterFilePath(s, pathID) {
		return errors.Wrapf(errdefs.ErrNotFound, "path %d in session %d", pathID, sid)
	}
	return nil
}

// ReadAhead attempts one readahead for pathID in sid and reports whether it
// succeeded; the attempt is recorded either way (spec.md §4.4 "ReadAhead").
func (e *Engine) ReadAhead(sid, pathID uint32, kind models.EntryKind, length, offset int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sid]
	if !ok {
		return false, errors.Wrapf(errdefs.ErrNotFound, "session %d", sid)
	}
	success := readAhead(s, pathID, kind, length, offset)
	metrics.ObserveReadAhead(success, length)
	return success, nil
}

// DestroySession releases every path a session holds and removes it.
// Idempotent: destroying an unknown sid is not an error (spec.md §4.4
// "Destroying a session is idempotent against already-released resources").
func (e *Engine) DestroySession(sid uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sid]
	if !ok {
		return nil
	}
	destroy(s)
	delete(e.sessions, sid)
	metrics.SessionsDestroyed.Inc()
	return nil
}

// DumpSession renders one session's statistics (spec.md §4.4 "DumpSession").
func (e *Engine) DumpSession(sid uint32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sid]
	if !ok {
		return "", errors.Wrapf(errdefs.ErrNotFound, "session %d", sid)
	}
	return dumpSession(s), nil
}

// DumpEverything renders every live session's statistics, sorted by id for
// deterministic output (spec.md §4.4 "DumpEverything").
func (e *Engine) DumpEverything() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.sessions) == 0 {
		return "No active sessions.\n"
	}

	ids := make([]uint32, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}

	out := fmt.Sprintf("Sessions: %d\n", len(ids))
	for _, id := range ids {
		out += dumpSession(e.sessions[id])
	}
	return out
}

// Exit tears down every session the engine still holds, matching a control
// protocol Exit command (spec.md §4.4 "Exit — child terminates cleanly").
func (e *Engine) Exit() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for sid, s := range e.sessions {
		destroy(s)
		delete(e.sessions, sid)
		metrics.SessionsDestroyed.Inc()
	}
}
