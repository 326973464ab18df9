// SPDX-License-Identifier: GPL-3.0-or-later

// Package dyntag resolves tag templates. A template is a literal, a "$key" placeholder filled from the
// source bean (or bean_regex groups), or a "$domain:k=v,...#Attribute" reference to an attribute of
// another bean. References are fetched at most once per iteration.
package dyntag

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

// Fetcher reads one attribute of one bean.
type Fetcher interface {
	Get(ctx context.Context, name objectname.ObjectName, attribute string) (any, error)
}

// Reference is a parsed "$domain:k=v#Attribute" template.
type Reference struct {
	Bean      objectname.ObjectName
	Attribute string
}

func (r Reference) key() string { return r.Bean.Canonical() + "#" + r.Attribute }

// ParseReference parses a reference template. ok is false for any other template.
func ParseReference(tmpl string) (Reference, bool) {
	if !strings.HasPrefix(tmpl, "$") {
		return Reference{}, false
	}
	bean, attr, found := strings.Cut(tmpl[1:], "#")
	if !found || attr == "" {
		return Reference{}, false
	}
	name, err := objectname.Parse(bean)
	if err != nil {
		return Reference{}, false
	}
	return Reference{Bean: name, Attribute: attr}, true
}

type entry struct {
	done  chan struct{}
	value string
	ok    bool
}

// Resolver resolves templates for one instance. Reset it at the start of every iteration.
type Resolver struct {
	*logger.Logger

	mu    sync.Mutex
	cache map[string]*entry
	// PrefetchLimit bounds concurrent reference reads in Prefetch.
	PrefetchLimit int
}

func New(log *logger.Logger) *Resolver {
	return &Resolver{
		Logger:        log.With(slog.String("component", "dyntag")),
		cache:         make(map[string]*entry),
		PrefetchLimit: 4,
	}
}

// Reset drops the values fetched during the previous iteration.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*entry)
}

// Fetches returns the number of distinct references fetched since the last Reset.
func (r *Resolver) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Prefetch reads every reference of the templates in parallel.
func (r *Resolver) Prefetch(ctx context.Context, f Fetcher, templates ...map[string]string) {
	seen := make(map[string]bool)
	var refs []Reference
	for _, tmpls := range templates {
		for _, tmpl := range tmpls {
			ref, ok := ParseReference(tmpl)
			if !ok || seen[ref.key()] {
				continue
			}
			seen[ref.key()] = true
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(max(r.PrefetchLimit, 1))
	for _, ref := range refs {
		g.Go(func() error {
			r.lookup(ctx, f, ref)
			return nil
		})
	}
	_ = g.Wait()
}

// Resolve renders the templates into sorted "name:value" tags. Templates that cannot be resolved
// are left out.
func (r *Resolver) Resolve(ctx context.Context, f Fetcher, templates map[string]string, bean objectname.ObjectName, groups map[string]string) []string {
	if len(templates) == 0 {
		return nil
	}

	tags := make([]string, 0, len(templates))
	for name, tmpl := range templates {
		var value string
		var ok bool

		if ref, isRef := ParseReference(tmpl); isRef {
			value, ok = r.lookup(ctx, f, ref)
		} else {
			value, ok = expand(tmpl, bean, groups)
		}
		if !ok {
			continue
		}
		tags = append(tags, name+":"+value)
	}
	sort.Strings(tags)

	return tags
}

func (r *Resolver) lookup(ctx context.Context, f Fetcher, ref Reference) (string, bool) {
	key := ref.key()

	r.mu.Lock()
	e, found := r.cache[key]
	if !found {
		e = &entry{done: make(chan struct{})}
		r.cache[key] = e
	}
	r.mu.Unlock()

	if found {
		select {
		case <-e.done:
			return e.value, e.ok
		case <-ctx.Done():
			return "", false
		}
	}

	defer close(e.done)

	v, err := f.Get(ctx, ref.Bean, ref.Attribute)
	if err != nil {
		r.Debugf("tag reference '%s': %v", key, err)
		return "", false
	}
	s, ok := jmx.FormatScalar(v)
	if !ok {
		r.Debugf("tag reference '%s': value of type %T can not be used as a tag", key, v)
		return "", false
	}

	e.value, e.ok = s, true
	return s, true
}

// expand fills "$name" placeholders from bean_regex groups and the bean key properties.
// Any unknown placeholder makes the whole template unresolvable.
func expand(tmpl string, bean objectname.ObjectName, groups map[string]string) (string, bool) {
	if !strings.Contains(tmpl, "$") {
		return tmpl, true
	}

	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '$' {
			sb.WriteByte(tmpl[i])
			continue
		}
		end := i + 1
		for end < len(tmpl) && isNameByte(tmpl[end]) {
			end++
		}
		name := tmpl[i+1 : end]
		if name == "" {
			sb.WriteByte('$')
			continue
		}

		v, ok := groups[name]
		if !ok {
			if name == "domain" {
				v, ok = bean.Domain, true
			} else if v, ok = bean.Get(name); ok {
				v = objectname.Unquote(v)
			}
		}
		if !ok {
			return "", false
		}
		sb.WriteString(v)
		i = end - 1
	}
	return sb.String(), true
}

func isNameByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
