// SPDX-License-Identifier: GPL-3.0-or-later

// Package instance implements one configured collection scope: its connection, its discovered beans,
// its connection state machine and its per-iteration collection.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/dyntag"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/extract"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/ratetrack"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

var (
	ErrStopped = errors.New("instance stopped")
	ErrBusy    = errors.New("previous collection is still running")
)

const minBaselineTTL = time.Minute * 30

type Telemetry struct {
	BeansFetched      int     `yaml:"beans_fetched" json:"beans_fetched"`
	AttributesMatched int     `yaml:"attributes_matched" json:"attributes_matched"`
	MetricsEmitted    int     `yaml:"metrics_emitted" json:"metrics_emitted"`
	WildcardQueries   int     `yaml:"wildcard_queries" json:"wildcard_queries"`
	BeanMatchRatio    float64 `yaml:"bean_match_ratio" json:"bean_match_ratio"`
}

// Result is the outcome of one successful Collect call.
type Result struct {
	Metrics   []metric.Sample
	Telemetry Telemetry
	// LimitReached is set when metrics were dropped because of the per-iteration limit.
	LimitReached bool
	// Skipped is set when the minimum collection interval has not elapsed yet.
	Skipped bool
	// Recovered is set when the connection was re-established and collection was left for the next iteration.
	Recovered bool
}

type Instance struct {
	*logger.Logger

	cfg      Config
	dialer   jmx.Dialer
	baseTags []string
	now      func() time.Time

	// taskMu serializes Collect calls; the fields below it are only used while holding it.
	taskMu        sync.Mutex
	attrs         map[string][]jmx.AttributeInfo
	refreshedAt   time.Time
	nextRefresh   time.Duration
	justRefreshed bool
	collectedAt   time.Time
	tel           Telemetry
	limitWarned   bool
	warned        map[string]bool

	mu      sync.Mutex
	state   State
	lastErr error
	conn    jmx.Conn
	sub     jmx.Subscription

	beans     *beanSet
	rates     *ratetrack.Tracker
	tags      *dyntag.Resolver
	extractor *extract.Extractor
}

func New(cfg Config, dialer jmx.Dialer, log *logger.Logger) *Instance {
	cfg = cfg.withDefaults()
	l := log.With(slog.String("instance", cfg.Name))

	return &Instance{
		Logger:    l,
		cfg:       cfg,
		dialer:    dialer,
		baseTags:  metric.MergeTags([]string{"instance:" + cfg.Name}, cfg.Tags),
		now:       time.Now,
		attrs:     make(map[string][]jmx.AttributeInfo),
		warned:    make(map[string]bool),
		beans:     newBeanSet(),
		rates:     ratetrack.New(),
		tags:      dyntag.New(l),
		extractor: extract.New(cfg.Extract),
	}
}

func (i *Instance) Name() string     { return i.cfg.Name }
func (i *Instance) Config() Config   { return i.cfg }
func (i *Instance) Endpoint() string { return i.dialer.Endpoint() }

// Tags returns the tags added to every metric and service check of the instance.
func (i *Instance) Tags() []string { return append([]string(nil), i.baseTags...) }

// LiveBeans returns the number of beans currently expected to be collected.
func (i *Instance) LiveBeans() int { return i.beans.Len() }

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Err returns the cause of the last transition to Broken.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// Collect runs one iteration. A Broken or Uninitialized instance first (re)connects; a recovered
// instance collects in the same call only if the context deadline leaves at least as much time as the
// recovery took. Connection faults move the instance to Broken and no metrics are returned.
func (i *Instance) Collect(ctx context.Context) (*Result, error) {
	if !i.taskMu.TryLock() {
		return nil, ErrBusy
	}
	defer i.taskMu.Unlock()

	start := i.now()
	i.tel = Telemetry{}

	switch st := i.State(); st {
	case Stopped:
		return nil, ErrStopped
	case Uninitialized, Broken:
		if err := i.initialize(ctx); err != nil {
			i.breakWith(err)
			return nil, err
		}
		if st == Broken && !fastEnough(ctx, start, i.now()) {
			return &Result{Recovered: true, Telemetry: i.tel}, nil
		}
	}

	if d := i.cfg.MinCollectionInterval; d > 0 && !i.collectedAt.IsZero() && start.Sub(i.collectedAt) < d {
		return &Result{Skipped: true}, nil
	}

	res, err := i.collect(ctx, start)
	if err != nil {
		if isFault(ctx, err) {
			i.breakWith(err)
		}
		return nil, err
	}

	// the subscription listener may have broken the instance while values were being read
	switch i.State() {
	case Stopped:
		return nil, ErrStopped
	case Broken:
		return nil, i.Err()
	}

	i.collectedAt = start
	i.rates.Prune(start.Add(-max(minBaselineTTL, 3*i.cfg.MinCollectionInterval)))

	return res, nil
}

// MarkBroken moves a connected instance to Broken so the next Collect reconnects.
func (i *Instance) MarkBroken(cause error) {
	i.breakWith(cause)
}

// Stop releases the connection and cancels the subscription. It is terminal.
func (i *Instance) Stop() {
	i.mu.Lock()
	if i.state == Stopped {
		i.mu.Unlock()
		return
	}
	i.state = Stopped
	sub, conn := i.sub, i.conn
	i.sub, i.conn = nil, nil
	i.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	i.Debug("stopped")
}

func (i *Instance) initialize(ctx context.Context) error {
	i.setState(Initializing)

	conn, err := i.dialer.Dial(ctx)
	if err != nil {
		return err
	}

	i.mu.Lock()
	if i.state == Stopped {
		i.mu.Unlock()
		_ = conn.Close()
		return ErrStopped
	}
	i.conn = conn
	i.mu.Unlock()

	i.attrs = make(map[string][]jmx.AttributeInfo)

	if i.cfg.EnableBeanSubscription {
		sub, err := conn.Subscribe(ctx, i.subscriptionDomains())
		if err != nil {
			return err
		}
		i.mu.Lock()
		i.sub = sub
		i.mu.Unlock()
		go i.listen(sub)
	}

	if err := i.refresh(ctx, conn); err != nil {
		return err
	}
	i.nextRefresh = i.cfg.RefreshBeansInitial
	i.justRefreshed = true

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == Stopped {
		return ErrStopped
	}
	if i.state != Initializing {
		if i.lastErr != nil {
			return i.lastErr
		}
		return fmt.Errorf("unexpected state '%s' after connect", i.state)
	}
	i.state = Running
	i.lastErr = nil
	i.Infof("connected to '%s', %d beans", i.dialer.Endpoint(), i.beans.Len())

	return nil
}

// breakWith moves the instance to Broken and releases the connection. The first cause is kept.
func (i *Instance) breakWith(err error) {
	i.breakWithSub(err, nil)
}

// breakWithSub breaks the instance only if sub is still its current subscription (when sub is not nil).
func (i *Instance) breakWithSub(err error, sub jmx.Subscription) {
	i.mu.Lock()
	if i.state == Stopped || (sub != nil && i.sub != sub) {
		i.mu.Unlock()
		return
	}
	if i.state == Broken && i.conn == nil && i.sub == nil {
		i.mu.Unlock()
		return
	}
	curSub, conn := i.sub, i.conn
	i.sub, i.conn = nil, nil
	i.state = Broken
	i.lastErr = err
	i.mu.Unlock()

	if curSub != nil {
		curSub.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	i.beans.Replace(nil)

	i.Errorf("connection to '%s' broken: %v", i.dialer.Endpoint(), err)
}

func (i *Instance) setState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != Stopped {
		i.state = s
	}
}

func (i *Instance) currentConn() jmx.Conn {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.conn
}

func (i *Instance) isCurrentSub(sub jmx.Subscription) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sub == sub
}

func (i *Instance) subscriptionDomains() []string {
	var domains []string
	for _, s := range i.cfg.Filters.Scopes() {
		if s.IsWildcard() {
			return nil
		}
		domains = append(domains, s.Domain)
	}
	return domains
}

func (i *Instance) warnOnce(key string, format string, a ...any) {
	if i.warned[key] {
		i.Debugf(format, a...)
		return
	}
	i.warned[key] = true
	i.Warningf(format, a...)
}

func isFault(ctx context.Context, err error) bool {
	return jmx.IsConnectionError(err) || ctx.Err() != nil
}

func fastEnough(ctx context.Context, start, now time.Time) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return deadline.Sub(now) >= now.Sub(start)
}

func beanKey(n objectname.ObjectName) string { return n.Canonical() }
