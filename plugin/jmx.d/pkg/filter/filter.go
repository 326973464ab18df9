// SPDX-License-Identifier: GPL-3.0-or-later

package filter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/netdata/netdata/go/jmxd/pkg/matcher"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

// Block is one raw include or exclude block as read from the configuration.
type Block map[string]any

// Conf is one entry of an instance "conf" list.
type Conf struct {
	Include Block `yaml:"include" json:"include"`
	Exclude Block `yaml:"exclude" json:"exclude"`
}

// Filter is a compiled include or exclude block.
type Filter struct {
	Kind  Kind
	Index int

	Domain   string
	domainRe *regexp.Regexp
	beans    []objectname.ObjectName
	beanRes  []*regexp.Regexp
	keys     []keyPattern

	Attributes  []*AttrRule
	AliasMatch  *regexp.Regexp
	Alias       string
	Tags        map[string]string
	ExcludeTags []string
	MetricType  MetricType
}

type keyPattern struct {
	key      string
	literal  string
	wildcard bool
	optional bool
	m        matcher.Matcher
}

// AttrRule is one declared attribute. Path is either an attribute name, a composite field path
// ("HeapMemoryUsage.used", "HeapMemoryUsage.*"), or a "/regex/" over attribute names.
type AttrRule struct {
	Path       string
	Alias      string
	MetricType MetricType

	re *regexp.Regexp
}

// Attribute returns the attribute name part of the path.
func (r *AttrRule) Attribute() string {
	if r.re != nil {
		return ""
	}
	if i := strings.IndexByte(r.Path, '.'); i > 0 {
		return r.Path[:i]
	}
	return r.Path
}

// Field returns the composite field part of the path, "" if the rule addresses the whole attribute.
func (r *AttrRule) Field() string {
	if r.re != nil {
		return ""
	}
	if i := strings.IndexByte(r.Path, '.'); i > 0 {
		return r.Path[i+1:]
	}
	return ""
}

func (r *AttrRule) matches(attr string) bool {
	if r.re != nil {
		return r.re.MatchString(attr)
	}
	return r.Attribute() == attr
}

var reservedKeys = map[string]bool{
	"domain":       true,
	"domain_regex": true,
	"bean":         true,
	"bean_name":    true,
	"bean_regex":   true,
	"attribute":    true,
	"alias_match":  true,
	"alias":        true,
	"tags":         true,
	"exclude_tags": true,
	"metric_type":  true,
}

// NewFilter compiles one block.
func NewFilter(kind Kind, index int, block Block) (*Filter, error) {
	f := &Filter{Kind: kind, Index: index}
	if len(block) == 0 {
		return nil, &ConfigError{Kind: kind, Index: index, Err: errors.New("empty block")}
	}

	cfgErr := func(key string, err error) error {
		return &ConfigError{Kind: kind, Index: index, Key: key, Err: err}
	}

	if v, ok := block["domain"]; ok {
		s, err := scalarString(v)
		if err != nil {
			return nil, cfgErr("domain", err)
		}
		f.Domain = s
	}
	if v, ok := block["domain_regex"]; ok {
		s, err := scalarString(v)
		if err != nil {
			return nil, cfgErr("domain_regex", err)
		}
		if f.domainRe, err = compileAnchored(s); err != nil {
			return nil, cfgErr("domain_regex", err)
		}
	}

	for _, key := range []string{"bean", "bean_name"} {
		v, ok := block[key]
		if !ok {
			continue
		}
		names, err := stringList(v)
		if err != nil {
			return nil, cfgErr(key, err)
		}
		for _, s := range names {
			n, err := objectname.Parse(s)
			if err != nil {
				return nil, cfgErr(key, err)
			}
			f.beans = append(f.beans, n)
		}
	}
	if v, ok := block["bean_regex"]; ok {
		exprs, err := stringList(v)
		if err != nil {
			return nil, cfgErr("bean_regex", err)
		}
		for _, expr := range exprs {
			re, err := compileAnchored(expr)
			if err != nil {
				return nil, cfgErr("bean_regex", err)
			}
			f.beanRes = append(f.beanRes, re)
		}
	}

	if v, ok := block["attribute"]; ok {
		rules, err := parseAttributes(v)
		if err != nil {
			return nil, cfgErr("attribute", err)
		}
		f.Attributes = rules
	}

	if v, ok := block["alias_match"]; ok {
		s, err := scalarString(v)
		if err != nil {
			return nil, cfgErr("alias_match", err)
		}
		if f.AliasMatch, err = compileAnchored(s); err != nil {
			return nil, cfgErr("alias_match", err)
		}
	}
	if v, ok := block["alias"]; ok {
		s, err := scalarString(v)
		if err != nil {
			return nil, cfgErr("alias", err)
		}
		f.Alias = s
	}
	if f.AliasMatch != nil && f.Alias == "" {
		return nil, cfgErr("alias_match", errors.New("requires 'alias'"))
	}

	if v, ok := block["tags"]; ok {
		tags, err := parseTags(v)
		if err != nil {
			return nil, cfgErr("tags", err)
		}
		f.Tags = tags
	}
	if v, ok := block["exclude_tags"]; ok {
		list, err := stringList(v)
		if err != nil {
			return nil, cfgErr("exclude_tags", err)
		}
		f.ExcludeTags = list
	}
	if v, ok := block["metric_type"]; ok {
		s, err := scalarString(v)
		if err != nil {
			return nil, cfgErr("metric_type", err)
		}
		if f.MetricType, err = ParseMetricType(s); err != nil {
			return nil, cfgErr("metric_type", err)
		}
	}

	keys := make([]string, 0, len(block))
	for k := range block {
		if !reservedKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		kp, err := newKeyPattern(k, block[k])
		if err != nil {
			return nil, cfgErr(k, err)
		}
		f.keys = append(f.keys, kp)
	}

	return f, nil
}

func newKeyPattern(key string, v any) (keyPattern, error) {
	kp := keyPattern{key: key}
	if strings.HasSuffix(key, "?") {
		kp.key = strings.TrimSuffix(key, "?")
		kp.optional = true
	}
	if kp.key == "" {
		return kp, errors.New("empty key")
	}

	values, err := stringList(v)
	if err != nil {
		return kp, err
	}
	if len(values) == 0 {
		return kp, errors.New("no value")
	}

	var ms []matcher.Matcher
	for _, value := range values {
		m, err := matcher.Parse(value)
		if err != nil {
			return kp, err
		}
		ms = append(ms, m)
	}

	switch len(ms) {
	case 1:
		kp.m = ms[0]
		switch {
		case values[0] == "*":
			kp.wildcard = true
		case !matcher.IsRegExpPattern(values[0]):
			kp.literal = values[0]
		}
	default:
		kp.m = matcher.Or(ms...)
	}
	kp.m = matcher.WithCache(kp.m)

	return kp, nil
}

func parseAttributes(v any) ([]*AttrRule, error) {
	switch value := v.(type) {
	case string:
		return newAttrRules([]string{value})
	case []any, []string:
		names, err := stringList(value)
		if err != nil {
			return nil, err
		}
		return newAttrRules(names)
	}

	m, ok := toStringMap(v)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", v)
	}

	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	rules, err := newAttrRules(names)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		spec := m[r.Path]
		if spec == nil {
			continue
		}
		sm, ok := toStringMap(spec)
		if !ok {
			return nil, fmt.Errorf("'%s': unexpected type %T", r.Path, spec)
		}
		if a, ok := sm["alias"]; ok {
			if r.Alias, err = scalarString(a); err != nil {
				return nil, fmt.Errorf("'%s': alias: %v", r.Path, err)
			}
		}
		if t, ok := sm["metric_type"]; ok {
			s, err := scalarString(t)
			if err != nil {
				return nil, fmt.Errorf("'%s': metric_type: %v", r.Path, err)
			}
			if r.MetricType, err = ParseMetricType(s); err != nil {
				return nil, fmt.Errorf("'%s': %v", r.Path, err)
			}
		}
	}

	return rules, nil
}

func newAttrRules(paths []string) ([]*AttrRule, error) {
	rules := make([]*AttrRule, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			return nil, errors.New("empty attribute")
		}
		r := &AttrRule{Path: p}
		if matcher.IsRegExpPattern(p) {
			re, err := compileAnchored(p[1 : len(p)-1])
			if err != nil {
				return nil, err
			}
			r.re = re
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func parseTags(v any) (map[string]string, error) {
	tags := make(map[string]string)

	if m, ok := toStringMap(v); ok {
		for k, tv := range m {
			s, err := scalarString(tv)
			if err != nil {
				return nil, fmt.Errorf("'%s': %v", k, err)
			}
			tags[k] = s
		}
	} else {
		list, err := stringList(v)
		if err != nil {
			return nil, err
		}
		for _, s := range list {
			k, val, _ := strings.Cut(s, ":")
			tags[k] = val
		}
	}

	for k, tmpl := range tags {
		if k == "" {
			return nil, errors.New("empty tag name")
		}
		if err := validateTagTemplate(tmpl); err != nil {
			return nil, fmt.Errorf("'%s': %v", k, err)
		}
	}
	return tags, nil
}

// validateTagTemplate checks the bean part of "$domain:key=value#Attribute" references.
func validateTagTemplate(tmpl string) error {
	if !strings.HasPrefix(tmpl, "$") {
		return nil
	}
	bean, attr, ok := strings.Cut(tmpl[1:], "#")
	if !ok {
		return nil
	}
	if attr == "" {
		return fmt.Errorf("reference '%s': empty attribute", tmpl)
	}
	if _, err := objectname.Parse(bean); err != nil {
		return fmt.Errorf("reference '%s': %v", tmpl, err)
	}
	return nil
}

func compileAnchored(expr string) (*regexp.Regexp, error) {
	if matcher.IsRegExpPattern(expr) {
		expr = expr[1 : len(expr)-1]
	}
	if expr == "" {
		return nil, matcher.ErrEmptyPattern
	}
	return regexp.Compile("^(?:" + expr + ")$")
}

func scalarString(v any) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case int:
		return strconv.Itoa(value), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(value), nil
	default:
		return "", fmt.Errorf("expected a scalar, got %T", v)
	}
}

func stringList(v any) ([]string, error) {
	switch value := v.(type) {
	case []string:
		return value, nil
	case []any:
		list := make([]string, 0, len(value))
		for _, item := range value {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			list = append(list, s)
		}
		return list, nil
	default:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func toStringMap(v any) (map[string]any, bool) {
	switch value := v.(type) {
	case map[string]any:
		return value, true
	case Block:
		return value, true
	case map[any]any:
		m := make(map[string]any, len(value))
		for k, item := range value {
			m[fmt.Sprint(k)] = item
		}
		return m, true
	case map[string]string:
		m := make(map[string]any, len(value))
		for k, item := range value {
			m[k] = item
		}
		return m, true
	default:
		return nil, false
	}
}
