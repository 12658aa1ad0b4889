/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package launch

// Outcome is the result of running an Event through the Defender.
type Outcome int

const (
	// Accept passes the event through unchanged.
	Accept Outcome = iota
	// Overwrite replaces the event's Type (keeping the rest of its body)
	// before delivery.
	Overwrite
	// Reject drops the event entirely; it is never delivered.
	Reject
)

// Defender enforces the legal-transition table of one launch sequence's
// state machine, silently repairing or rejecting a client that reports
// events out of order. Grounded on AppLaunchEventDefender in
// event_manager.cc: a terminal state only accepts IntentStarted;
// IntentStarted otherwise overwrites into IntentFailed; ActivityLaunched
// otherwise overwrites into ActivityLaunchCancelled; ActivityLaunchFinished
// otherwise rejects. Not safe for concurrent use; callers serialize access
// (the Pipeline's worker goroutine owns the only instance per launch slot).
type Defender struct {
	last EventType
}

// NewDefender returns a Defender starting from the Uninitialized state.
func NewDefender() *Defender {
	return &Defender{last: EventUninitialized}
}

// Apply runs event through the transition table, returning the Outcome and
// (for Accept/Overwrite) the EventType that should actually be delivered.
func (d *Defender) Apply(event Event) (Outcome, EventType) {
	switch d.last {
	case EventUninitialized, EventIntentFailed, EventActivityLaunchCancelled, EventReportFullyDrawn:
		// From a terminal state, only a fresh IntentStarted is legal.
		if event.Type != EventIntentStarted {
			d.last = EventUninitialized
			return Reject, event.Type
		}
		d.last = event.Type
		return Accept, event.Type

	case EventIntentStarted:
		if event.Type == EventIntentFailed || event.Type == EventActivityLaunched {
			d.last = event.Type
			return Accept, event.Type
		}
		d.last = EventIntentFailed
		return Overwrite, EventIntentFailed

	case EventActivityLaunched:
		if event.Type == EventActivityLaunchFinished || event.Type == EventActivityLaunchCancelled {
			d.last = event.Type
			return Accept, event.Type
		}
		d.last = EventActivityLaunchCancelled
		return Overwrite, EventActivityLaunchCancelled

	case EventActivityLaunchFinished:
		if event.Type == EventIntentStarted || event.Type == EventReportFullyDrawn {
			d.last = event.Type
			return Accept, event.Type
		}
		d.last = EventUninitialized
		return Reject, event.Type

	default:
		d.last = EventUninitialized
		return Reject, event.Type
	}
}
