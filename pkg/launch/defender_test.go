/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package launch

import "testing"

func TestDefenderAcceptsHappyPath(t *testing.T) {
	d := NewDefender()

	steps := []EventType{
		EventIntentStarted,
		EventActivityLaunched,
		EventActivityLaunchFinished,
		EventReportFullyDrawn,
	}
	for _, step := range steps {
		outcome, deliveredType := d.Apply(Event{Type: step})
		if outcome != Accept {
			t.Fatalf("step %s: got outcome %v, want Accept", step, outcome)
		}
		if deliveredType != step {
			t.Fatalf("step %s: got delivered type %v", step, deliveredType)
		}
	}
}

func TestDefenderRejectsNonIntentStartedFromTerminalState(t *testing.T) {
	d := NewDefender()
	outcome, _ := d.Apply(Event{Type: EventActivityLaunched})
	if outcome != Reject {
		t.Fatalf("got %v, want Reject", outcome)
	}

	// After a reject, the defender resets to Uninitialized: only
	// IntentStarted is legal again.
	outcome, deliveredType := d.Apply(Event{Type: EventIntentStarted})
	if outcome != Accept || deliveredType != EventIntentStarted {
		t.Fatalf("got (%v, %v), want (Accept, IntentStarted)", outcome, deliveredType)
	}
}

func TestDefenderOverwritesIntentStartedSkippingToActivityLaunchFinished(t *testing.T) {
	d := NewDefender()
	d.Apply(Event{Type: EventIntentStarted})

	outcome, deliveredType := d.Apply(Event{Type: EventActivityLaunchFinished})
	if outcome != Overwrite {
		t.Fatalf("got %v, want Overwrite", outcome)
	}
	if deliveredType != EventIntentFailed {
		t.Fatalf("got delivered type %v, want IntentFailed", deliveredType)
	}
}

func TestDefenderOverwritesActivityLaunchedSkippingToIntentStarted(t *testing.T) {
	d := NewDefender()
	d.Apply(Event{Type: EventIntentStarted})
	d.Apply(Event{Type: EventActivityLaunched})

	outcome, deliveredType := d.Apply(Event{Type: EventIntentStarted})
	if outcome != Overwrite {
		t.Fatalf("got %v, want Overwrite", outcome)
	}
	if deliveredType != EventActivityLaunchCancelled {
		t.Fatalf("got delivered type %v, want ActivityLaunchCancelled", deliveredType)
	}
}

func TestDefenderActivityLaunchFinishedAcceptsNewIntentStarted(t *testing.T) {
	d := NewDefender()
	d.Apply(Event{Type: EventIntentStarted})
	d.Apply(Event{Type: EventActivityLaunched})
	d.Apply(Event{Type: EventActivityLaunchFinished})

	outcome, deliveredType := d.Apply(Event{Type: EventIntentStarted})
	if outcome != Accept || deliveredType != EventIntentStarted {
		t.Fatalf("got (%v, %v), want (Accept, IntentStarted)", outcome, deliveredType)
	}
}

func TestDefenderActivityLaunchFinishedRejectsActivityLaunched(t *testing.T) {
	d := NewDefender()
	d.Apply(Event{Type: EventIntentStarted})
	d.Apply(Event{Type: EventActivityLaunched})
	d.Apply(Event{Type: EventActivityLaunchFinished})

	outcome, _ := d.Apply(Event{Type: EventActivityLaunched})
	if outcome != Reject {
		t.Fatalf("got %v, want Reject", outcome)
	}
}

func TestDefenderIntentFailedIsTerminal(t *testing.T) {
	d := NewDefender()
	d.Apply(Event{Type: EventIntentStarted})
	outcome, deliveredType := d.Apply(Event{Type: EventIntentFailed})
	if outcome != Accept || deliveredType != EventIntentFailed {
		t.Fatalf("got (%v, %v)", outcome, deliveredType)
	}

	outcome, _ = d.Apply(Event{Type: EventActivityLaunched})
	if outcome != Reject {
		t.Fatalf("got %v, want Reject from terminal IntentFailed state", outcome)
	}
}
