/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package launch implements the per-launch app-launch-event state machine
// (spec.md §4.7): it turns the binder-delivered IntentStarted / ActivityLaunched
// / ... event stream into readahead-mode or trace-mode prefetch sessions and
// app_launch_histories rows, grounded on AppLaunchEventState and
// AppLaunchEventDefender in event_manager.cc.
package launch

import "github.com/iorap-project/iorapd/pkg/models"

// EventType mirrors binder::AppLaunchEvent::Type: the kind of lifecycle
// event reported for one launch sequence.
type EventType int

const (
	EventUninitialized EventType = iota
	EventIntentStarted
	EventIntentFailed
	EventActivityLaunched
	EventActivityLaunchFinished
	EventActivityLaunchCancelled
	EventReportFullyDrawn
)

func (t EventType) String() string {
	switch t {
	case EventIntentStarted:
		return "IntentStarted"
	case EventIntentFailed:
		return "IntentFailed"
	case EventActivityLaunched:
		return "ActivityLaunched"
	case EventActivityLaunchFinished:
		return "ActivityLaunchFinished"
	case EventActivityLaunchCancelled:
		return "ActivityLaunchCancelled"
	case EventReportFullyDrawn:
		return "ReportFullyDrawn"
	default:
		return "Uninitialized"
	}
}

// Event is one binder-delivered app-launch lifecycle notification. Not every
// field is populated by every Type: see the per-case handling in
// Pipeline.onEvent, which mirrors AppLaunchEventState::OnNewEvent.
type Event struct {
	Type EventType

	// SequenceID identifies the launch attempt this event belongs to.
	SequenceID uint64

	// Package/Activity/HasComponent carry the component name. IntentStarted
	// populates them from the Intent extras (HasComponent false if the
	// intent didn't resolve to a component yet); ActivityLaunched populates
	// them from the activity record's window title.
	Package      string
	Activity     string
	HasComponent bool

	// Temperature is only meaningful on ActivityLaunched.
	Temperature models.Temperature

	// TimestampNs is intent_started_ns on IntentStarted, total_time_ns on
	// ActivityLaunchFinished, and report_fully_drawn_ns on ReportFullyDrawn.
	// A negative original value arrives here as HasTimestamp=false (Go has
	// no signed/unsigned surprise to guard against, but we keep the same
	// "absent" semantics as the C++ `>= 0` checks).
	TimestampNs  uint64
	HasTimestamp bool
}
