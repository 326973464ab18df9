// SPDX-License-Identifier: GPL-3.0-or-later

package jolokia

import (
	"context"
	"sync"
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

// Subscribe emulates registration notifications: the agent is searched every subscription interval and
// the result is diffed against the previous one. A failed search closes the stream with the error.
func (c *conn) Subscribe(ctx context.Context, domains []string) (jmx.Subscription, error) {
	patterns := []objectname.ObjectName{{Domain: "*", PropertyPattern: true}}
	if len(domains) > 0 {
		patterns = patterns[:0]
		for _, d := range domains {
			patterns = append(patterns, objectname.ObjectName{Domain: d, PropertyPattern: true})
		}
	}

	known, err := c.snapshot(ctx, patterns)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		conn:     c,
		patterns: patterns,
		known:    known,
		events:   make(chan jmx.Notification, 64),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.run(subCtx, c.client.cfg.SubscriptionInterval.Duration())

	return s, nil
}

func (c *conn) snapshot(ctx context.Context, patterns []objectname.ObjectName) (map[string]objectname.ObjectName, error) {
	names := make(map[string]objectname.ObjectName)
	for _, p := range patterns {
		found, err := c.Query(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, n := range found {
			names[n.Canonical()] = n
		}
	}
	return names, nil
}

type subscription struct {
	conn     *conn
	patterns []objectname.ObjectName
	known    map[string]objectname.ObjectName

	events chan jmx.Notification
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (s *subscription) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	defer close(s.events)

	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}

		current, err := s.conn.snapshot(ctx, s.patterns)
		if err != nil {
			if ctx.Err() == nil {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}

		for key, n := range current {
			if _, ok := s.known[key]; !ok {
				if !s.send(ctx, jmx.Notification{Type: jmx.BeanRegistered, Name: n}) {
					return
				}
			}
		}
		for key, n := range s.known {
			if _, ok := current[key]; !ok {
				if !s.send(ctx, jmx.Notification{Type: jmx.BeanUnregistered, Name: n}) {
					return
				}
			}
		}
		s.known = current
	}
}

func (s *subscription) send(ctx context.Context, n jmx.Notification) bool {
	select {
	case s.events <- n:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *subscription) Events() <-chan jmx.Notification { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() {
	s.cancel()
	<-s.done
}
