// SPDX-License-Identifier: GPL-3.0-or-later

package filter

import (
	"strconv"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

// FilterSet holds the compiled include and exclude filters of one instance.
type FilterSet struct {
	includes []*Filter
	excludes []*Filter
}

// Parse compiles the conf list of an instance. Every block is validated; the first error is returned.
func Parse(confs []Conf) (*FilterSet, error) {
	fs := &FilterSet{}
	for _, c := range confs {
		if len(c.Include) == 0 && len(c.Exclude) == 0 {
			return nil, &ConfigError{Kind: Include, Index: len(fs.includes), Err: errEmptyConf}
		}
		if len(c.Include) > 0 {
			f, err := NewFilter(Include, len(fs.includes), c.Include)
			if err != nil {
				return nil, err
			}
			fs.includes = append(fs.includes, f)
		}
		if len(c.Exclude) > 0 {
			f, err := NewFilter(Exclude, len(fs.excludes), c.Exclude)
			if err != nil {
				return nil, err
			}
			fs.excludes = append(fs.excludes, f)
		}
	}
	return fs, nil
}

// Merge concatenates filter sets keeping declaration order: filters of earlier sets win specificity ties.
func Merge(sets ...*FilterSet) *FilterSet {
	merged := &FilterSet{}
	for _, s := range sets {
		if s == nil {
			continue
		}
		for _, f := range s.includes {
			c := *f
			c.Index = len(merged.includes)
			merged.includes = append(merged.includes, &c)
		}
		for _, f := range s.excludes {
			c := *f
			c.Index = len(merged.excludes)
			merged.excludes = append(merged.excludes, &c)
		}
	}
	return merged
}

func (fs *FilterSet) Includes() []*Filter { return fs.includes }
func (fs *FilterSet) Excludes() []*Filter { return fs.excludes }

// Match is the outcome of matching one bean attribute.
type Match struct {
	Decision Decision
	// Filter is the winning include filter.
	Filter *Filter
	// Rules are the winning filter's attribute rules that apply to the attribute.
	// Nil means the filter declares no attributes and the attribute is collected as a whole.
	Rules []*AttrRule
	// Groups holds bean_regex and domain_regex captures, by number and by name.
	Groups map[string]string
}

// Match decides whether attr of the bean name is collected.
// Any matching exclude rejects the pair. Among matching includes the one binding the most keys wins,
// ties go to the first declared.
func (fs *FilterSet) Match(name objectname.ObjectName, attr string) Match {
	for _, f := range fs.excludes {
		if _, ok := f.matchBean(name); !ok {
			continue
		}
		if _, ok := f.matchAttribute(attr); ok {
			return Match{Decision: Excluded, Filter: f}
		}
	}

	var best Match
	bestSpec := -1
	for _, f := range fs.includes {
		groups, ok := f.matchBean(name)
		if !ok {
			continue
		}
		rules, ok := f.matchAttribute(attr)
		if !ok {
			continue
		}
		if spec := f.specificity(name); spec > bestSpec {
			bestSpec = spec
			best = Match{Decision: Included, Filter: f, Rules: rules, Groups: groups}
		}
	}

	return best
}

// MatchBean reports whether some attribute of the bean could be collected: an include selects the bean
// and no attribute-less exclude rejects it.
func (fs *FilterSet) MatchBean(name objectname.ObjectName) bool {
	for _, f := range fs.excludes {
		if len(f.Attributes) > 0 {
			continue
		}
		if _, ok := f.matchBean(name); ok {
			return false
		}
	}
	for _, f := range fs.includes {
		if _, ok := f.matchBean(name); ok {
			return true
		}
	}
	return false
}

func (f *Filter) matchBean(name objectname.ObjectName) (map[string]string, bool) {
	var groups map[string]string

	if f.Domain != "" && f.Domain != name.Domain {
		return nil, false
	}
	if f.domainRe != nil {
		sm := f.domainRe.FindStringSubmatch(name.Domain)
		if sm == nil {
			return nil, false
		}
		groups = addGroups(groups, f.domainRe.SubexpNames(), sm)
	}

	if len(f.beans) > 0 {
		found := false
		for _, b := range f.beans {
			if b.Equal(name) {
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	if len(f.beanRes) > 0 {
		found := false
		for _, s := range []string{name.String(), name.Canonical()} {
			for _, re := range f.beanRes {
				if sm := re.FindStringSubmatch(s); sm != nil {
					groups = addGroups(groups, re.SubexpNames(), sm)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	for _, kp := range f.keys {
		v, ok := name.Get(kp.key)
		if !ok {
			if kp.optional {
				continue
			}
			return nil, false
		}
		if kp.m.MatchString(v) {
			continue
		}
		if uv := objectname.Unquote(v); uv == v || !kp.m.MatchString(uv) {
			return nil, false
		}
	}

	return groups, true
}

func (f *Filter) matchAttribute(attr string) ([]*AttrRule, bool) {
	if len(f.Attributes) == 0 {
		return nil, true
	}
	var rules []*AttrRule
	for _, r := range f.Attributes {
		if r.matches(attr) {
			rules = append(rules, r)
		}
	}
	return rules, len(rules) > 0
}

// specificity is the number of keys the filter binds for name. Literal bean names bind every key.
func (f *Filter) specificity(name objectname.ObjectName) int {
	if len(f.beans) > 0 {
		return len(name.Props)
	}
	n := 0
	for _, kp := range f.keys {
		if !kp.optional && !kp.wildcard {
			n++
		}
	}
	return n
}

func addGroups(groups map[string]string, names, sm []string) map[string]string {
	if len(sm) < 2 {
		return groups
	}
	if groups == nil {
		groups = make(map[string]string)
	}
	for i := 1; i < len(sm); i++ {
		groups[strconv.Itoa(i)] = sm[i]
		if names[i] != "" {
			groups[names[i]] = sm[i]
		}
	}
	return groups
}
