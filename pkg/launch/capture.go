/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package launch

import "github.com/iorap-project/iorapd/pkg/models"

// Capture is an in-flight kernel trace capture window.
type Capture interface {
	// Abort cancels the capture before it would otherwise complete; the
	// TraceCapture's onData callback is guaranteed not to fire afterwards.
	// Safe to call after the window has already completed (no-op).
	Abort()
}

// TraceCapture is the kernel/perfetto trace producer boundary: start a
// fixed-window capture for vcn and get the raw trace bytes back exactly
// once, on whatever goroutine the implementation chooses (the Pipeline's io
// goroutine is the only thing that touches the returned bytes, so
// implementations may call onData from any goroutine). This is the Go stand
// -in for event_manager.cc's injected `perfetto_factory_`
// (RxProducerFactory) — the original itself treats the producer as a
// replaceable dependency rather than hard-wiring a concrete perfetto client,
// so modeling it as an interface here carries the same boundary forward;
// this module has no perfetto/kernel-stream client of its own to wire it
// to.
type TraceCapture interface {
	Begin(vcn models.VersionedComponentName, onData func(data []byte)) Capture
}

// NoTraceCapture is a TraceCapture that never produces data and reports no
// capture as having started; it's the default when no concrete kernel trace
// producer is wired in, so that allowed_tracing_ effectively degrades to
// "tracing requested but unavailable" rather than panicking.
var NoTraceCapture TraceCapture = noTraceCapture{}

type noTraceCapture struct{}

func (noTraceCapture) Begin(models.VersionedComponentName, func([]byte)) Capture {
	return nil
}
