/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package launch

import "sync"

// historySubject is a one-shot, replay-to-late-subscribers value cell: the
// Go stand-in for AppLaunchEventSubject/history_id_observable_'s
// `.replay(1)` rx chain in event_manager.cc. IntentStarted creates one per
// launch sequence; whichever of Resolve or Fail is called first decides the
// outcome, and Wait (called from the io goroutine, possibly before the
// worker goroutine has resolved it) always observes that same outcome.
type historySubject struct {
	once        sync.Once
	done        chan struct{}
	id          int64
	totalTimeNs *uint64
	err         error
}

func newHistorySubject() *historySubject {
	return &historySubject{done: make(chan struct{})}
}

// Resolve binds the subject to historyID and totalTimeNs, the same launch's
// duration at the moment RecordDbLaunchHistory ran. Binding both together
// here, instead of leaving totalTimeNs to be read back out of Pipeline.state
// later, is what lets Wait hand the io goroutine a value that can't have
// been overwritten by a subsequent, unrelated launch in the meantime. A
// second call (Resolve or Fail) is a no-op, matching "Cannot Subscribe
// twice"/single-assignment semantics.
func (s *historySubject) Resolve(historyID int64, totalTimeNs *uint64) {
	s.once.Do(func() {
		s.id = historyID
		s.totalTimeNs = totalTimeNs
		close(s.done)
	})
}

// Fail terminates the subject with err instead of a history id, used when
// the launch is aborted (IntentFailed/ActivityLaunchCancelled) or the DB
// insert itself failed.
func (s *historySubject) Fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Wait blocks until Resolve or Fail has been called and returns the bound
// history id and totalTimeNs, or the error passed to Fail.
func (s *historySubject) Wait() (int64, *uint64, error) {
	<-s.done
	return s.id, s.totalTimeNs, s.err
}
