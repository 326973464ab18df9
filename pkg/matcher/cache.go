// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

import "sync"

// maxCacheEntries bounds the cache; bean populations churn and the cache must not grow forever.
const maxCacheEntries = 10000

type cachedMatcher struct {
	matcher Matcher

	mux   sync.RWMutex
	cache map[string]bool
}

// WithCache adds cache to the matcher. Literal and constant matchers are returned as is.
func WithCache(m Matcher) Matcher {
	switch m.(type) {
	case trueMatcher, falseMatcher, stringFullMatcher, *cachedMatcher:
		return m
	default:
		return &cachedMatcher{matcher: m, cache: make(map[string]bool)}
	}
}

func (m *cachedMatcher) Match(b []byte) bool {
	return m.MatchString(string(b))
}

func (m *cachedMatcher) MatchString(s string) bool {
	if result, ok := m.fetch(s); ok {
		return result
	}
	result := m.matcher.MatchString(s)
	m.put(s, result)
	return result
}

func (m *cachedMatcher) fetch(key string) (result bool, ok bool) {
	m.mux.RLock()
	result, ok = m.cache[key]
	m.mux.RUnlock()
	return
}

func (m *cachedMatcher) put(key string, result bool) {
	m.mux.Lock()
	if len(m.cache) >= maxCacheEntries {
		clear(m.cache)
	}
	m.cache[key] = result
	m.mux.Unlock()
}
