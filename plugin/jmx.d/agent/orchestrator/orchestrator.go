// SPDX-License-Identifier: GPL-3.0-or-later

// Package orchestrator runs one collection task per instance on a bounded worker pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/instance"
)

const defaultPoolSize = 3

var ErrTimeout = errors.New("collection timed out")

// Collector is the unit of work the orchestrator schedules. *instance.Instance implements it.
type Collector interface {
	Name() string
	Collect(ctx context.Context) (*instance.Result, error)
	MarkBroken(cause error)
}

type Tag int

const (
	StatusSuccess Tag = iota
	StatusTimeout
	StatusFailure
)

func (t Tag) String() string {
	switch t {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Status is the outcome of one task: a result on success, the cause otherwise.
type Status struct {
	Tag      Tag
	Result   *instance.Result
	Err      error
	Duration time.Duration
}

type Orchestrator struct {
	*logger.Logger

	poolSize int
}

// New returns an orchestrator running at most poolSize tasks at once.
func New(poolSize int, log *logger.Logger) *Orchestrator {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &Orchestrator{
		Logger:   log.With(slog.String("component", "orchestrator")),
		poolSize: poolSize,
	}
}

func (o *Orchestrator) PoolSize() int { return o.poolSize }

// RunIteration runs every collector once and waits until all of them finish or timeout elapses.
// Collectors that time out or fail are marked broken. Collector names must be unique.
func (o *Orchestrator) RunIteration(ctx context.Context, collectors []Collector, timeout time.Duration) map[string]Status {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	statuses := make(map[string]Status, len(collectors))

	p := pool.New().WithMaxGoroutines(o.poolSize)
	for _, c := range collectors {
		p.Go(func() {
			st := o.runTask(ctx, c)

			switch st.Tag {
			case StatusTimeout:
				o.Warningf("instance '%s': %v after %s", c.Name(), st.Err, st.Duration)
				c.MarkBroken(st.Err)
			case StatusFailure:
				o.Debugf("instance '%s': %v", c.Name(), st.Err)
				if !errors.Is(st.Err, instance.ErrStopped) && !errors.Is(st.Err, instance.ErrBusy) {
					c.MarkBroken(st.Err)
				}
			}

			mu.Lock()
			statuses[c.Name()] = st
			mu.Unlock()
		})
	}
	p.Wait()

	return statuses
}

// runTask returns when the collector finishes or ctx is done. An abandoned Collect keeps running in
// the background; the instance rejects overlapping calls.
func (o *Orchestrator) runTask(ctx context.Context, c Collector) Status {
	start := time.Now()

	if ctx.Err() != nil {
		return Status{Tag: StatusTimeout, Err: ErrTimeout}
	}

	type outcome struct {
		res *instance.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.Errorf("instance '%s': panic: %v\n%s", c.Name(), r, debug.Stack())
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := c.Collect(ctx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		st := Status{Result: out.res, Err: out.err, Duration: time.Since(start)}
		switch {
		case out.err == nil:
			st.Tag = StatusSuccess
		case errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() != nil:
			st.Tag, st.Err = StatusTimeout, fmt.Errorf("%w: %v", ErrTimeout, out.err)
		default:
			st.Tag = StatusFailure
		}
		return st
	case <-ctx.Done():
		return Status{Tag: StatusTimeout, Err: ErrTimeout, Duration: time.Since(start)}
	}
}
