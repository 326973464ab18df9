// SPDX-License-Identifier: GPL-3.0-or-later

// Package tickstate counts scheduler ticks dropped while an iteration is still running.
package tickstate

import (
	"sync"
	"time"
)

// Skip describes the tick that was just dropped.
type Skip struct {
	// Count is the number of ticks dropped in a row, including this one.
	Count int
	// Running is how long the current iteration has been running; zero before the first iteration.
	Running time.Duration
}

// Resume describes the ticks dropped before an iteration started.
type Resume struct {
	Skipped int
	// LastRun is the duration of the previous iteration.
	LastRun time.Duration
}

type Tracker struct {
	mu      sync.Mutex
	skipped int
	started time.Time
	stopped time.Time
}

func (t *Tracker) Skip(now time.Time) Skip {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.skipped++
	s := Skip{Count: t.skipped}
	if !t.started.IsZero() {
		s.Running = now.Sub(t.started)
	}
	return s
}

func (t *Tracker) Start(now time.Time) Resume {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := Resume{Skipped: t.skipped}
	if !t.started.IsZero() && t.stopped.After(t.started) {
		r.LastRun = t.stopped.Sub(t.started)
	}
	t.skipped = 0
	t.started = now
	return r
}

func (t *Tracker) Stop(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = now
}
