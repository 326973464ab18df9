// SPDX-License-Identifier: GPL-3.0-or-later

package filter

import (
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

// Scope is the literal key/value scope shared by every include filter of a domain.
// An empty Domain means the domain is unknown and the whole registry must be queried.
type Scope struct {
	Domain string
	Props  []objectname.Property
}

// Pattern renders the scope as a registry query pattern: "domain:k1=v1,k2=v2,*", "domain:*" or "*:*".
func (s Scope) Pattern() objectname.ObjectName {
	if s.Domain == "" {
		return objectname.ObjectName{Domain: "*", PropertyPattern: true}
	}
	return objectname.ObjectName{Domain: s.Domain, Props: s.Props, PropertyPattern: true}
}

func (s Scope) String() string { return s.Pattern().String() }

// maxQuotedProps bounds the number of scope properties expanded into quoting variants.
const maxQuotedProps = 3

// Patterns returns the query patterns covering every registry form of the scope: each literal value
// may be registered plain or quoted, so a scope with n properties expands into up to 2^n patterns.
// Properties past maxQuotedProps are dropped, which only widens the query.
func (s Scope) Patterns() []objectname.ObjectName {
	if s.Domain == "" || len(s.Props) == 0 {
		return []objectname.ObjectName{s.Pattern()}
	}

	props := s.Props
	if len(props) > maxQuotedProps {
		props = props[:maxQuotedProps]
	}

	variants := [][]objectname.Property{nil}
	for _, p := range props {
		v := objectname.Unquote(p.Value)
		forms := []string{objectname.Quote(v)}
		if !objectname.NeedsQuote(v) {
			forms = append([]string{v}, forms...)
		}

		var next [][]objectname.Property
		for _, prefix := range variants {
			for _, form := range forms {
				vp := make([]objectname.Property, len(prefix), len(prefix)+1)
				copy(vp, prefix)
				next = append(next, append(vp, objectname.Property{Key: p.Key, Value: form}))
			}
		}
		variants = next
	}

	patterns := make([]objectname.ObjectName, 0, len(variants))
	for _, vp := range variants {
		patterns = append(patterns, objectname.ObjectName{Domain: s.Domain, Props: vp, PropertyPattern: true})
	}
	return patterns
}

// IsWildcard reports whether the scope queries the whole registry.
func (s Scope) IsWildcard() bool { return s.Domain == "" }

// Scopes returns the query scopes of the set's include filters.
func (fs *FilterSet) Scopes() []Scope { return CommonScopes(fs.includes) }

// CommonScopes computes, per domain, the keys bound to the same literal value by every include filter of
// that domain. Regex, wildcard and optional keys never take part. A filter with no literal domain
// forces a single "*:*" scope. Scopes are returned in the order domains first appear.
func CommonScopes(includes []*Filter) []Scope {
	var order []string
	common := make(map[string][]objectname.Property)

	for _, f := range includes {
		contrib, ok := f.scopeContributions()
		if !ok {
			return []Scope{{}}
		}
		for _, c := range contrib {
			props, seen := common[c.Domain]
			if !seen {
				order = append(order, c.Domain)
				common[c.Domain] = c.Props
				continue
			}
			common[c.Domain] = intersect(props, c.Props)
		}
	}

	scopes := make([]Scope, 0, len(order))
	for _, d := range order {
		scopes = append(scopes, Scope{Domain: d, Props: common[d]})
	}
	return scopes
}

func (f *Filter) scopeContributions() ([]Scope, bool) {
	if len(f.beans) > 0 {
		scopes := make([]Scope, 0, len(f.beans))
		for _, b := range f.beans {
			scopes = append(scopes, Scope{Domain: b.Domain, Props: b.Props})
		}
		return scopes, true
	}
	if f.Domain == "" {
		return nil, false
	}

	var props []objectname.Property
	for _, kp := range f.keys {
		if kp.literal != "" && !kp.optional {
			props = append(props, objectname.Property{Key: kp.key, Value: kp.literal})
		}
	}
	return []Scope{{Domain: f.Domain, Props: props}}, true
}

func intersect(a, b []objectname.Property) []objectname.Property {
	var res []objectname.Property
	for _, pa := range a {
		for _, pb := range b {
			if pa.Key == pb.Key && pa.Value == pb.Value {
				res = append(res, pa)
				break
			}
		}
	}
	return res
}
