// SPDX-License-Identifier: GPL-3.0-or-later

package instance

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

// beanSet is the set of discovered beans. Writers copy the current snapshot and swap it in;
// readers get an immutable snapshot.
type beanSet struct {
	mu   sync.Mutex
	snap atomic.Pointer[map[string]objectname.ObjectName]
}

func newBeanSet() *beanSet {
	s := &beanSet{}
	s.snap.Store(&map[string]objectname.ObjectName{})
	return s
}

// Snapshot returns the beans sorted by canonical name.
func (s *beanSet) Snapshot() []objectname.ObjectName {
	m := *s.snap.Load()
	beans := make([]objectname.ObjectName, 0, len(m))
	for _, n := range m {
		beans = append(beans, n)
	}
	sort.Slice(beans, func(i, j int) bool { return beans[i].Canonical() < beans[j].Canonical() })
	return beans
}

func (s *beanSet) Len() int { return len(*s.snap.Load()) }

func (s *beanSet) Contains(n objectname.ObjectName) bool {
	_, ok := (*s.snap.Load())[n.Canonical()]
	return ok
}

func (s *beanSet) Replace(beans []objectname.ObjectName) {
	m := make(map[string]objectname.ObjectName, len(beans))
	for _, n := range beans {
		m[n.Canonical()] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Store(&m)
}

// Add reports whether the bean was not in the set.
func (s *beanSet) Add(n objectname.ObjectName) bool {
	return s.update(func(m map[string]objectname.ObjectName) bool {
		if _, ok := m[n.Canonical()]; ok {
			return false
		}
		m[n.Canonical()] = n
		return true
	})
}

// Remove reports whether the bean was in the set.
func (s *beanSet) Remove(n objectname.ObjectName) bool {
	return s.update(func(m map[string]objectname.ObjectName) bool {
		if _, ok := m[n.Canonical()]; !ok {
			return false
		}
		delete(m, n.Canonical())
		return true
	})
}

func (s *beanSet) update(fn func(map[string]objectname.ObjectName) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.snap.Load()
	next := make(map[string]objectname.ObjectName, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	if !fn(next) {
		return false
	}
	s.snap.Store(&next)
	return true
}
