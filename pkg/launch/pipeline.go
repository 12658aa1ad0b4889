/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package launch

import (
	"context"
	"os"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/config"
	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/errdefs"
	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/prefetcher"
	"github.com/iorap-project/iorapd/pkg/store"
	"github.com/iorap-project/iorapd/pkg/trace"
)

// sessionID is the prefetcher.Engine session id the Pipeline reserves for
// readahead-mode playback. Every launch sequence reuses the same id:
// CreateFdSession/DestroySession bracket one launch at a time, mirroring
// the single TaskId slot read_ahead_task_ in event_manager.cc.
const sessionID uint32 = 1

// launchState is the per-launch-sequence bookkeeping AppLaunchEventState
// keeps between events: component name, temperature, timestamps, and
// whether a readahead session or trace capture is currently in flight.
type launchState struct {
	component       models.VersionedComponentName
	temperature     models.Temperature
	blacklisted     bool
	intentStartedNs *uint64
	totalTimeNs     *uint64

	readAheadActive bool
	capture         Capture
	subject         *historySubject
	recentHistoryID *int64
}

// Pipeline is the single owner of one launch sequence's state machine: a
// worker goroutine applies the Defender and drives DB/session-engine side
// effects; an io goroutine writes completed trace captures to disk and
// records them. Grounded on AppLaunchEventState + the worker/io thread split
// described in event_manager.cc and spec.md §5 "Scheduling".
type Pipeline struct {
	db         *store.Database
	engine     prefetcher.SessionEngine
	properties *config.PropertyStore
	versions   VersionLookup
	capture    TraceCapture
	rootDir    string

	defender *Defender
	state    launchState

	events chan workItem
	io     chan func()
	done   chan struct{}
	ioDone chan struct{}
}

type workItem struct {
	ctx   context.Context
	event Event
}

// NewPipeline wires a Pipeline's dependencies and starts its worker and io
// goroutines. Callers must call Close when done to stop both.
func NewPipeline(db *store.Database, engine prefetcher.SessionEngine, properties *config.PropertyStore, versions VersionLookup, capture TraceCapture, rootDir string) *Pipeline {
	if capture == nil {
		capture = NoTraceCapture
	}
	if rootDir == "" {
		rootDir = constant.DefaultRootDir
	}
	p := &Pipeline{
		db:         db,
		engine:     engine,
		properties: properties,
		versions:   versions,
		capture:    capture,
		rootDir:    rootDir,
		defender:   NewDefender(),
		events:     make(chan workItem, 16),
		io:         make(chan func(), 16),
		done:       make(chan struct{}),
		ioDone:     make(chan struct{}),
	}
	go p.runWorker()
	go p.runIO()
	return p
}

// Close stops the worker and io goroutines. In-flight work already queued
// still runs to completion first.
func (p *Pipeline) Close() {
	close(p.events)
	<-p.done
	close(p.io)
	<-p.ioDone
}

func (p *Pipeline) runWorker() {
	for item := range p.events {
		p.onEvent(item.ctx, item.event)
	}
	close(p.done)
}

func (p *Pipeline) runIO() {
	for fn := range p.io {
		fn()
	}
	close(p.ioDone)
}

// Submit enqueues event for processing on the worker goroutine. It does not
// block on the event's side effects; callers that need completion should
// rely on store side effects (e.g. polling SelectHistoryByID) instead.
func (p *Pipeline) Submit(ctx context.Context, event Event) {
	p.events <- workItem{ctx: ctx, event: event}
}

// onEvent is the worker-goroutine entry point: run the Defender, then apply
// whatever event actually survives (Accept passes event.Type through,
// Overwrite substitutes a different Type keeping the rest of the body,
// Reject drops it).
func (p *Pipeline) onEvent(ctx context.Context, event Event) {
	outcome, deliveredType := p.defender.Apply(event)
	if outcome == Reject {
		log.G(ctx).Warnf("launch: rejecting illegal transition to %s", event.Type)
		return
	}
	if outcome == Overwrite {
		log.G(ctx).Warnf("launch: overwriting illegal transition into %s", deliveredType)
		event.Type = deliveredType
	}

	switch event.Type {
	case EventIntentStarted:
		p.onIntentStarted(ctx, event)
	case EventIntentFailed:
		p.onIntentFailed(ctx, event)
	case EventActivityLaunched:
		p.onActivityLaunched(ctx, event)
	case EventActivityLaunchFinished:
		p.onActivityLaunchFinished(ctx, event)
	case EventActivityLaunchCancelled:
		p.onActivityLaunchCancelled(ctx, event)
	case EventReportFullyDrawn:
		p.onReportFullyDrawn(ctx, event)
	}
}

func (p *Pipeline) onIntentStarted(ctx context.Context, event Event) {
	p.state = launchState{}

	vcn := models.VersionedComponentName{Package: event.Package, Activity: event.Activity}.Canonicalize()
	p.state.component = vcn

	if p.properties.IsBlacklisted(vcn.Package) {
		log.G(ctx).Debugf("launch: %s ignored (blacklisted)", vcn.Package)
		p.state.blacklisted = true
		return
	}

	p.state.subject = newHistorySubject()

	if event.HasTimestamp {
		ns := event.TimestampNs
		p.state.intentStartedNs = &ns
	}

	if !event.HasComponent {
		return
	}

	if p.properties.ReadaheadEnabled() {
		p.startReadAhead(ctx, vcn)
	}
	if p.properties.PerfettoEnabled() && !p.state.readAheadActive {
		p.startTracing(ctx, vcn)
	}
}

func (p *Pipeline) onIntentFailed(ctx context.Context, event Event) {
	if p.ignoredByBlacklist(ctx, "IntentFailed") {
		return
	}
	p.abortTrace()
	p.abortReadAhead(ctx)
	if p.state.subject != nil {
		p.state.subject.Fail(errors.New("aborting due to intent failed"))
	}
}

func (p *Pipeline) onActivityLaunched(ctx context.Context, event Event) {
	if !event.HasComponent {
		log.G(ctx).Warn("launch: activity launched without a component name")
		return
	}
	vcn := models.VersionedComponentName{Package: event.Package, Activity: event.Activity}.Canonicalize()
	p.state.component = vcn

	if p.properties.IsBlacklisted(vcn.Package) {
		p.state.blacklisted = true
		return
	}

	p.state.temperature = event.Temperature
	if event.Temperature != models.TemperatureCold {
		p.abortTrace()
		p.abortReadAhead(ctx)
		return
	}

	if !p.isTracing() && !p.state.readAheadActive {
		if p.properties.ReadaheadEnabled() {
			p.startReadAhead(ctx, vcn)
		}
		if p.properties.PerfettoEnabled() && !p.isTracing() && !p.state.readAheadActive {
			p.startTracing(ctx, vcn)
		}
	}
}

func (p *Pipeline) onActivityLaunchFinished(ctx context.Context, event Event) {
	if p.ignoredByBlacklist(ctx, "ActivityLaunchFinished") {
		return
	}
	if event.HasTimestamp {
		ns := event.TimestampNs
		p.state.totalTimeNs = &ns
	}
	p.recordDbLaunchHistory(ctx)

	// Note: tracing, if active, is left running — its capture completes on
	// its own fixed window and writes the raw trace file from the io
	// goroutine; we deliberately don't Abort it here.
	p.finishReadAhead(ctx)
}

func (p *Pipeline) onActivityLaunchCancelled(ctx context.Context, event Event) {
	if p.ignoredByBlacklist(ctx, "ActivityLaunchCancelled") {
		return
	}
	p.abortTrace()
	p.abortReadAhead(ctx)
	if p.state.subject != nil {
		p.state.subject.Fail(errors.New("aborting due to activity launch cancelled"))
	}
}

func (p *Pipeline) onReportFullyDrawn(ctx context.Context, event Event) {
	if p.ignoredByBlacklist(ctx, "ReportFullyDrawn") {
		return
	}
	if p.state.recentHistoryID == nil {
		log.G(ctx).Warn("launch: dangling ReportFullyDrawn event")
		return
	}
	if err := p.db.UpdateReportFullyDrawn(*p.state.recentHistoryID, event.TimestampNs); err != nil {
		log.G(ctx).Warnf("launch: failed to update report_fully_drawn_ns: %v", err)
	}
	p.state.recentHistoryID = nil
}

func (p *Pipeline) ignoredByBlacklist(ctx context.Context, what string) bool {
	if p.state.blacklisted {
		log.G(ctx).Debugf("launch: %s ignored (blacklisted)", what)
		return true
	}
	return false
}

func (p *Pipeline) isTracing() bool {
	return p.state.capture != nil
}

func (p *Pipeline) abortTrace() {
	if p.state.capture == nil {
		return
	}
	p.state.capture.Abort()
	p.state.capture = nil
}

func (p *Pipeline) finishReadAhead(ctx context.Context) {
	if !p.state.readAheadActive {
		return
	}
	if err := p.engine.DestroySession(sessionID); err != nil {
		log.G(ctx).Warnf("launch: failed to tear down readahead session: %v", err)
	}
	p.state.readAheadActive = false
}

func (p *Pipeline) abortReadAhead(ctx context.Context) {
	p.finishReadAhead(ctx)
}

// startReadAhead resolves a compiled trace for vcn (DB-first, prebuilt-
// fallback) and, if one exists, hands its fd to the prefetch engine.
func (p *Pipeline) startReadAhead(ctx context.Context, vcn models.VersionedComponentName) {
	version, ok := p.resolveVersion(ctx, vcn.Package)
	if !ok {
		return
	}
	vcn.Version = version

	path, ok := p.getCompiledTrace(vcn)
	if !ok {
		log.G(ctx).Debug("launch: no compiled trace found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.G(ctx).Warnf("launch: failed to open compiled trace %s: %v", path, err)
		return
	}

	if err := p.engine.CreateFdSession(sessionID, vcn.String(), f, prefetcher.ParseStrategy(p.properties.ReadaheadStrategy())); err != nil {
		log.G(ctx).Warnf("launch: CreateFdSession failed: %v", err)
		return
	}
	p.state.readAheadActive = true
}

// getCompiledTrace implements EventManager::GetCompiledTrace: the database's
// prefetch_files row for vcn, else the prebuilt on-disk fallback.
func (p *Pipeline) getCompiledTrace(vcn models.VersionedComponentName) (string, bool) {
	pf, err := p.db.SelectPrefetchFileByVersionedComponentName(vcn)
	if err == nil {
		if _, statErr := os.Stat(pf.FilePath); statErr == nil {
			return pf.FilePath, true
		}
	} else if !errdefs.IsNotFound(err) {
		return "", false
	}

	fallback := prebuiltCompiledTracePath(vcn.Package)
	if _, err := os.Stat(fallback); err == nil {
		return fallback, true
	}
	return "", false
}

// startTracing begins a fixed-window kernel trace capture for vcn, routing
// its eventual output onto the io goroutine for file-write + DB bookkeeping.
func (p *Pipeline) startTracing(ctx context.Context, vcn models.VersionedComponentName) {
	subject := p.state.subject

	p.state.capture = p.capture.Begin(vcn, func(data []byte) {
		p.io <- func() {
			p.writeTraceResult(ctx, vcn, subject, data)
		}
	})
}

// writeTraceResult runs on the io goroutine: it binds to the history id the
// IntentStarted event set up (waiting if RecordDbLaunchHistory hasn't run
// yet), writes the raw trace file, inserts its raw_traces row, and prunes
// old trace files for the versioned component.
func (p *Pipeline) writeTraceResult(ctx context.Context, vcn models.VersionedComponentName, subject *historySubject, data []byte) {
	historyID, totalTimeNs, err := subject.Wait()
	if err != nil {
		log.G(ctx).Debugf("launch: discarding trace capture, history id chain failed: %v", err)
		return
	}

	version, ok := p.resolveVersion(ctx, vcn.Package)
	if !ok {
		return
	}
	vcn.Version = version

	timestampNs := uint64(historyID)
	if totalTimeNs != nil {
		timestampNs = *totalTimeNs
	}
	path := rawTracePath(p.rootDir, vcn, timestampNs)
	if err := os.MkdirAll(rawTraceDir(p.rootDir, vcn), 0755); err != nil {
		log.G(ctx).Errorf("launch: mkdir for raw trace failed: %v", err)
		return
	}
	if err := trace.WriteFileMapped(path, data); err != nil {
		log.G(ctx).Errorf("launch: failed to save raw trace to %s: %v", path, err)
		return
	}
	log.G(ctx).Infof("launch: raw trace saved to %s", path)

	if _, err := p.db.InsertRawTrace(historyID, path); err != nil {
		log.G(ctx).Errorf("launch: failed to insert raw_traces row for %s: %v", path, err)
		return
	}

	p.pruneOldTraces(ctx, vcn)
}

// pruneOldTraces keeps only the newest PerfettoMaxTraces raw-trace files
// (and rows) for vcn, mirroring PerfettoTraceFileModel::DeleteOlderFiles.
func (p *Pipeline) pruneOldTraces(ctx context.Context, vcn models.VersionedComponentName) {
	traces, err := p.db.SelectRawTracesByVersionedComponentName(vcn)
	if err != nil {
		log.G(ctx).Warnf("launch: failed to list raw traces for pruning: %v", err)
		return
	}
	maxTraces := p.properties.PerfettoMaxTraces()
	if len(traces) <= maxTraces {
		return
	}
	for _, rt := range traces[:len(traces)-maxTraces] {
		if err := os.Remove(rt.FilePath); err != nil && !os.IsNotExist(err) {
			log.G(ctx).Warnf("launch: failed to remove old raw trace %s: %v", rt.FilePath, err)
		}
		if err := p.db.DeleteRawTrace(rt.ID); err != nil {
			log.G(ctx).Warnf("launch: failed to delete raw_traces row %d: %v", rt.ID, err)
		}
	}
}

// recordDbLaunchHistory inserts the app_launch_histories row for the
// current launch and resolves/fails the history-id subject accordingly,
// mirroring AppLaunchEventState::RecordDbLaunchHistory.
func (p *Pipeline) recordDbLaunchHistory(ctx context.Context) {
	subject := p.state.subject
	if subject == nil {
		log.G(ctx).Warn("launch: no history-id subject, logic error")
		return
	}

	version, ok := p.resolveVersion(ctx, p.state.component.Package)
	if !ok {
		subject.Fail(errors.New("package version unavailable"))
		return
	}

	activity, err := p.db.SelectOrInsertActivity(p.state.component.Package, version, p.state.component.Activity)
	if err != nil {
		log.G(ctx).Warnf("launch: failed to resolve activity row: %v", err)
		subject.Fail(err)
		return
	}

	history, err := p.db.InsertAppLaunchHistory(models.AppLaunchHistory{
		ActivityID:       activity.ID,
		Temperature:      p.state.temperature,
		TraceEnabled:     p.isTracing(),
		ReadaheadEnabled: p.state.readAheadActive,
		IntentStartedNs:  p.state.intentStartedNs,
		TotalTimeNs:      p.state.totalTimeNs,
	})
	if err != nil {
		log.G(ctx).Warnf("launch: failed to insert app_launch_histories row: %v", err)
		subject.Fail(err)
		return
	}

	subject.Resolve(history.ID, p.state.totalTimeNs)
	p.state.recentHistoryID = &history.ID
}

func (p *Pipeline) resolveVersion(ctx context.Context, pkg string) (int, bool) {
	version, ok := p.versions.Version(pkg)
	if !ok {
		log.G(ctx).Debug("launch: package version unavailable, maybe package manager is down")
	}
	return version, ok
}
