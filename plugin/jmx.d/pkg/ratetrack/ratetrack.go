// SPDX-License-Identifier: GPL-3.0-or-later

// Package ratetrack computes counter deltas and per-second rates against the previous observation.
package ratetrack

import (
	"sync"
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
)

// minElapsed is the smallest interval a rate is computed over.
const minElapsed = time.Millisecond

type Baseline struct {
	Value float64
	Time  time.Time
}

// Tracker holds the baselines of one instance.
type Tracker struct {
	mu        sync.Mutex
	baselines map[string]Baseline
}

func New() *Tracker {
	return &Tracker{baselines: make(map[string]Baseline)}
}

// Observe records a raw sample and returns the value to emit.
// Gauges and histograms are emitted as is. Counters and rates are not emitted on the first observation
// of a key, nor when the value decreased; the baseline is updated on every observation.
func (t *Tracker) Observe(key string, typ filter.MetricType, raw float64, now time.Time) (float64, bool) {
	if !typ.Baselined() {
		return raw, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.baselines[key]
	t.baselines[key] = Baseline{Value: raw, Time: now}

	if !seen {
		return 0, false
	}

	delta := raw - prev.Value
	if delta < 0 {
		return 0, false
	}
	if typ == filter.Counter {
		return delta, true
	}

	elapsed := now.Sub(prev.Time)
	if elapsed < minElapsed {
		return 0, false
	}
	return delta / elapsed.Seconds(), true
}

// Baseline returns the stored baseline of key.
func (t *Tracker) Baseline(key string) (Baseline, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.baselines[key]
	return b, ok
}

// Prune drops baselines last observed before the cutoff and returns how many were removed.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for k, b := range t.baselines {
		if b.Time.Before(cutoff) {
			delete(t.baselines, k)
			n++
		}
	}
	return n
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.baselines)
}
