// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent runs the collection loop: it loads check configurations, keeps one instance per
// configured endpoint, runs an iteration every interval and hands the results to a reporter.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/confgroup"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/instance"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/internal/tickstate"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/orchestrator"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/reporter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/status"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jolokia"
)

const (
	defaultUpdateEvery = time.Second * 15
	defaultPoolSize    = 3
)

type Config struct {
	ConfigDirs  []string
	Check       string
	UpdateEvery time.Duration
	// Timeout bounds one iteration; defaults to UpdateEvery.
	Timeout    time.Duration
	PoolSize   int
	Reporter   reporter.Reporter
	StatusFile string
	// Listen is the address the prometheus reporter is served on.
	Listen string
	// RunOnce runs a single iteration and returns.
	RunOnce bool
	// Watch reloads the configuration when files in ConfigDirs change.
	Watch bool
}

// DialerFunc creates the transport of an instance.
type DialerFunc func(cfg jolokia.Config) (jmx.Dialer, error)

type Agent struct {
	*logger.Logger

	cfg       Config
	newDialer DialerFunc
	orch      *orchestrator.Orchestrator
	status    *status.Writer
	skips     tickstate.Tracker

	reloadCh chan struct{}

	mu        sync.Mutex
	instances map[string]*managed
	order     []string
	iteration int64
}

type managed struct {
	inst  *instance.Instance
	check string
	hash  uint64
}

func New(cfg Config) *Agent {
	if cfg.UpdateEvery <= 0 {
		cfg.UpdateEvery = defaultUpdateEvery
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.UpdateEvery
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.Reporter == nil {
		cfg.Reporter = reporter.NewConsole(os.Stdout)
	}

	log := logger.New().With(slog.String("component", "agent"))
	a := &Agent{
		Logger: log,
		cfg:    cfg,
		newDialer: func(c jolokia.Config) (jmx.Dialer, error) {
			return jolokia.New(c)
		},
		orch:      orchestrator.New(cfg.PoolSize, log),
		reloadCh:  make(chan struct{}, 1),
		instances: make(map[string]*managed),
	}
	if cfg.StatusFile != "" {
		a.status = status.NewWriter(cfg.StatusFile, log)
	}
	return a
}

// Reload asks the running agent to re-read its configuration before the next iteration.
func (a *Agent) Reload() {
	select {
	case a.reloadCh <- struct{}{}:
	default:
	}
}

// Run loads the configuration and collects until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	a.Infof("starting: update every %s, pool size %d", a.cfg.UpdateEvery, a.cfg.PoolSize)
	defer a.stopAll()
	if a.status != nil {
		defer func() { _ = a.status.Close() }()
	}

	if err := a.load(); err != nil && a.instanceCount() == 0 {
		return err
	}

	if a.cfg.RunOnce {
		a.runIteration(ctx)
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.loop(ctx) })

	if a.cfg.Watch && len(a.cfg.ConfigDirs) > 0 {
		g.Go(func() error { return a.watch(ctx) })
	}

	if p := findPrometheus(a.cfg.Reporter); p != nil && a.cfg.Listen != "" {
		g.Go(func() error { return a.serve(ctx, p.Handler()) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Agent) loop(ctx context.Context) error {
	tick := make(chan time.Time, 1)
	go func() {
		tk := time.NewTicker(a.cfg.UpdateEvery)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tk.C:
				a.enqueueTick(tick, now)
			}
		}
	}()

	a.runIteration(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.reloadCh:
			if err := a.load(); err != nil {
				a.Errorf("reload: %v", err)
			}
		case <-tick:
			a.runIteration(ctx)
		}
	}
}

func (a *Agent) enqueueTick(tick chan time.Time, now time.Time) {
	select {
	case tick <- now:
		return
	default:
	}

	skip := a.skips.Skip(now)
	if skip.Count >= 2 {
		a.Warningf("skipping iteration: previous one is still running for %s (skipped %d times in a row, interval %s)",
			skip.Running, skip.Count, a.cfg.UpdateEvery)
		return
	}
	a.Infof("skipping iteration: previous one is still running for %s (interval %s)", skip.Running, a.cfg.UpdateEvery)
}

func (a *Agent) serve(ctx context.Context, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second * 10}

	ln, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on '%s': %v", a.cfg.Listen, err)
	}
	a.Infof("serving metrics on http://%s/metrics", ln.Addr())

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func findPrometheus(r reporter.Reporter) *reporter.Prometheus {
	switch r := r.(type) {
	case *reporter.Prometheus:
		return r
	case reporter.Multi:
		for _, rr := range r {
			if p := findPrometheus(rr); p != nil {
				return p
			}
		}
	}
	return nil
}

// load reads the configuration and replaces instances whose configuration changed.
func (a *Agent) load() error {
	resolved, err := confgroup.Load(a.cfg.ConfigDirs, a.cfg.Check)
	if err != nil {
		a.Errorf("configuration: %v", err)
	}
	if len(resolved) == 0 {
		if err == nil {
			err = errors.New("no instances configured")
		}
		if a.instanceCount() > 0 {
			a.Warning("no instances in the new configuration, keeping the running ones")
		}
		return err
	}

	a.apply(resolved)
	return err
}

func (a *Agent) apply(resolved []confgroup.Resolved) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := make(map[string]*managed, len(resolved))
	order := make([]string, 0, len(resolved))

	for _, r := range resolved {
		name := r.Instance.Name
		if cur, ok := a.instances[name]; ok && cur.hash == r.Hash {
			next[name] = cur
			order = append(order, name)
			continue
		}

		d, err := a.newDialer(r.Jolokia)
		if err != nil {
			a.Errorf("instance '%s' (%s): %v", name, r.Source, err)
			continue
		}

		next[name] = &managed{
			inst:  instance.New(r.Instance, d, a.Logger),
			check: r.Check,
			hash:  r.Hash,
		}
		order = append(order, name)

		if _, ok := a.instances[name]; ok {
			a.Infof("instance '%s' configuration changed, restarting", name)
		} else {
			a.Infof("instance '%s' added (%s, %s)", name, r.Source, d.Endpoint())
		}
	}

	for name, cur := range a.instances {
		if next[name] != cur {
			cur.inst.Stop()
			if _, ok := next[name]; !ok {
				a.Infof("instance '%s' removed", name)
			}
		}
	}

	a.instances = next
	a.order = order
}

func (a *Agent) snapshot() []*managed {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*managed, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.instances[name])
	}
	return out
}

func (a *Agent) instanceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.instances)
}

func (a *Agent) stopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range a.instances {
		m.inst.Stop()
	}
	a.instances = make(map[string]*managed)
	a.order = nil
}
