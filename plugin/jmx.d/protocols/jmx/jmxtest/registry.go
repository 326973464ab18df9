// SPDX-License-Identifier: GPL-3.0-or-later

// Package jmxtest provides an in-memory registry implementing the jmx connection contract.
// It is used by engine tests and supports fault injection.
package jmxtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

type bean struct {
	name  objectname.ObjectName
	attrs map[string]attribute
}

type attribute struct {
	typ   string
	value any
}

// Registry is an in-memory bean registry.
type Registry struct {
	mu sync.Mutex

	beans map[string]*bean
	subs  map[*subscription]struct{}

	downErr    error
	queryDelay time.Duration

	dials   int
	queries []string
	gets    int
}

func NewRegistry() *Registry {
	return &Registry{
		beans: make(map[string]*bean),
		subs:  make(map[*subscription]struct{}),
	}
}

// AddBean registers a bean with the given attributes and notifies subscribers.
// Attribute types are inferred from the values.
func (r *Registry) AddBean(name string, attrs map[string]any) {
	n := objectname.MustParse(name)

	b := &bean{name: n, attrs: make(map[string]attribute, len(attrs))}
	for k, v := range attrs {
		b.attrs[k] = attribute{typ: InferType(v), value: v}
	}

	r.mu.Lock()
	_, existed := r.beans[n.Canonical()]
	r.beans[n.Canonical()] = b
	subs := r.subscribers()
	r.mu.Unlock()

	if !existed {
		notify(subs, jmx.Notification{Type: jmx.BeanRegistered, Name: n})
	}
}

// SetAttribute sets (or adds) one attribute of an existing bean.
func (r *Registry) SetAttribute(name, attr string, value any) {
	r.SetTypedAttribute(name, attr, InferType(value), value)
}

// SetTypedAttribute is SetAttribute with an explicit Java type.
func (r *Registry) SetTypedAttribute(name, attr, typ string, value any) {
	n := objectname.MustParse(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.beans[n.Canonical()]
	if !ok {
		b = &bean{name: n, attrs: make(map[string]attribute)}
		r.beans[n.Canonical()] = b
	}
	b.attrs[attr] = attribute{typ: typ, value: value}
}

// RemoveBean unregisters a bean and notifies subscribers.
func (r *Registry) RemoveBean(name string) {
	n := objectname.MustParse(name)

	r.mu.Lock()
	_, existed := r.beans[n.Canonical()]
	delete(r.beans, n.Canonical())
	subs := r.subscribers()
	r.mu.Unlock()

	if existed {
		notify(subs, jmx.Notification{Type: jmx.BeanUnregistered, Name: n})
	}
}

// SetDown makes every dial and every call on open connections fail with a connection error.
// A nil error brings the registry back.
func (r *Registry) SetDown(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downErr = err
}

// SetQueryDelay delays every Query call.
func (r *Registry) SetQueryDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryDelay = d
}

// DropSubscriptions closes every open subscription with err.
func (r *Registry) DropSubscriptions(err error) {
	r.mu.Lock()
	subs := r.subscribers()
	r.subs = make(map[*subscription]struct{})
	r.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
}

// Dials returns the number of successful dials.
func (r *Registry) Dials() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

// Queries returns the patterns of every Query call, in call order.
func (r *Registry) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

// Gets returns the number of attribute reads.
func (r *Registry) Gets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

// Dialer returns a dialer connecting to this registry.
func (r *Registry) Dialer(endpoint string) jmx.Dialer {
	return &dialer{reg: r, endpoint: endpoint}
}

func (r *Registry) subscribers() []*subscription {
	subs := make([]*subscription, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	return subs
}

func (r *Registry) checkUp(endpoint string) error {
	if r.downErr != nil {
		return &jmx.ConnectionError{Endpoint: endpoint, Err: r.downErr}
	}
	return nil
}

type dialer struct {
	reg      *Registry
	endpoint string
}

func (d *dialer) Endpoint() string { return d.endpoint }

func (d *dialer) Dial(ctx context.Context) (jmx.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	if err := d.reg.checkUp(d.endpoint); err != nil {
		return nil, err
	}
	d.reg.dials++

	return &conn{reg: d.reg, endpoint: d.endpoint}, nil
}

type conn struct {
	reg      *Registry
	endpoint string

	mu     sync.Mutex
	closed bool
}

var errClosed = errors.New("connection closed")

func (c *conn) check() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return &jmx.ConnectionError{Endpoint: c.endpoint, Err: errClosed}
	}
	return c.reg.checkUp(c.endpoint)
}

func (c *conn) Query(ctx context.Context, pattern objectname.ObjectName) ([]objectname.ObjectName, error) {
	c.reg.mu.Lock()
	delay := c.reg.queryDelay
	c.reg.queries = append(c.reg.queries, pattern.String())
	c.reg.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()

	if err := c.check(); err != nil {
		return nil, err
	}

	var names []objectname.ObjectName
	for _, b := range c.reg.beans {
		if pattern.Matches(b.name) {
			names = append(names, b.name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Canonical() < names[j].Canonical() })

	return names, nil
}

func (c *conn) Attributes(_ context.Context, name objectname.ObjectName) ([]jmx.AttributeInfo, error) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()

	if err := c.check(); err != nil {
		return nil, err
	}

	b, ok := c.reg.beans[name.Canonical()]
	if !ok {
		return nil, &jmx.AttributeError{Bean: name, Err: jmx.ErrNotFound}
	}

	infos := make([]jmx.AttributeInfo, 0, len(b.attrs))
	for k, a := range b.attrs {
		infos = append(infos, jmx.AttributeInfo{Name: k, Type: a.typ})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos, nil
}

func (c *conn) Get(_ context.Context, name objectname.ObjectName, attr string) (any, error) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()

	if err := c.check(); err != nil {
		return nil, err
	}
	c.reg.gets++

	b, ok := c.reg.beans[name.Canonical()]
	if !ok {
		return nil, &jmx.AttributeError{Bean: name, Attribute: attr, Err: jmx.ErrNotFound}
	}
	a, ok := b.attrs[attr]
	if !ok {
		return nil, &jmx.AttributeError{Bean: name, Attribute: attr, Err: jmx.ErrNotFound}
	}
	if err, ok := a.value.(error); ok {
		return nil, &jmx.AttributeError{Bean: name, Attribute: attr, Err: err}
	}

	return a.value, nil
}

func (c *conn) Subscribe(_ context.Context, domains []string) (jmx.Subscription, error) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()

	if err := c.check(); err != nil {
		return nil, err
	}

	s := &subscription{
		domains: domains,
		events:  make(chan jmx.Notification, 256),
		done:    make(chan struct{}),
		unsub: func(s *subscription) {
			c.reg.mu.Lock()
			delete(c.reg.subs, s)
			c.reg.mu.Unlock()
		},
	}
	c.reg.subs[s] = struct{}{}

	return s, nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type subscription struct {
	domains []string
	events  chan jmx.Notification
	unsub   func(*subscription)

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

func notify(subs []*subscription, n jmx.Notification) {
	for _, s := range subs {
		s.send(n)
	}
}

func (s *subscription) wants(domain string) bool {
	if len(s.domains) == 0 {
		return true
	}
	for _, d := range s.domains {
		if d == domain {
			return true
		}
	}
	return false
}

func (s *subscription) send(n jmx.Notification) {
	if !s.wants(n.Name.Domain) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- n:
	case <-s.done:
	}
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
	close(s.events)
}

func (s *subscription) Events() <-chan jmx.Notification { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() {
	s.unsub(s)
	s.fail(nil)
}
