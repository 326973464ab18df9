// SPDX-License-Identifier: GPL-3.0-or-later

// Package extract turns raw attribute values into named, typed metric candidates.
package extract

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

var ErrUnsupported = errors.New("unsupported value")

type TabularMode string

const (
	// Tagged folds the row index into tags.
	Tagged TabularMode = "tagged"
	// Tagless folds the row index into the metric name.
	Tagless TabularMode = "tagless"
)

// Candidate is one metric produced from an attribute value.
type Candidate struct {
	Name  string
	Value float64
	Type  filter.MetricType
	Tags  []string

	// Match is the filter decision the candidate was produced under.
	Match filter.Match
	Src   objectname.ObjectName
	Path  string
}

// Key identifies the sample source across iterations.
func (c Candidate) Key() string { return c.Src.Canonical() + "#" + c.Path }

type Options struct {
	TabularMode            TabularMode
	NormalizeBeanParamTags bool
	ExcludeTags            []string
}

type Extractor struct {
	opts        Options
	excludeTags map[string]bool
}

func New(opts Options) *Extractor {
	if opts.TabularMode == "" {
		opts.TabularMode = Tagged
	}
	ex := make(map[string]bool, len(opts.ExcludeTags))
	for _, t := range opts.ExcludeTags {
		ex[t] = true
	}
	return &Extractor{opts: opts, excludeTags: ex}
}

// Request is one matched attribute to extract.
type Request struct {
	Bean      objectname.ObjectName
	Attribute string
	Value     any
	Match     filter.Match
}

// Extract produces the candidates of one attribute. Fields that cannot be converted are skipped and
// reported in the returned error; the candidates of the other fields are still returned.
func (e *Extractor) Extract(req Request) ([]Candidate, error) {
	if req.Match.Decision != filter.Included || req.Match.Filter == nil {
		return nil, nil
	}

	x := &extraction{e: e, req: req, baseTags: e.beanTags(req.Bean, req.Match.Filter)}

	switch value := req.Value.(type) {
	case jmx.Composite:
		x.composite(value)
	case *jmx.Tabular:
		x.tabular(value)
	case jmx.Statistic:
		x.statistic(value)
	default:
		x.scalar(value)
	}

	return x.out, errors.Join(x.errs...)
}

type extraction struct {
	e        *Extractor
	req      Request
	baseTags []string

	out  []Candidate
	errs []error
}

func (x *extraction) fail(path string, err error) {
	x.errs = append(x.errs, &jmx.AttributeError{Bean: x.req.Bean, Attribute: path, Err: err})
}

func (x *extraction) scalar(v any) {
	rule := x.wholeRule()
	if x.req.Match.Rules != nil && rule == nil {
		return
	}
	f, ok := jmx.ToFloat(v)
	if !ok {
		x.fail(x.req.Attribute, fmt.Errorf("%w: %T", ErrUnsupported, v))
		return
	}
	x.emit(x.req.Attribute, x.req.Attribute, f, rule, nil)
}

func (x *extraction) composite(c jmx.Composite) {
	for _, rule := range x.req.Match.Rules {
		field := rule.Field()
		switch field {
		case "":
			continue
		case "*":
			keys := make([]string, 0, len(c))
			for k := range c {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if _, nested := c[k].(jmx.Composite); nested {
					continue
				}
				x.field(x.req.Attribute+"."+k, c[k], rule)
			}
		default:
			v, ok := lookup(c, field)
			if !ok {
				x.fail(rule.Path, jmx.ErrNotFound)
				continue
			}
			x.field(rule.Path, v, rule)
		}
	}
}

func (x *extraction) field(path string, v any, rule *filter.AttrRule) {
	f, ok := jmx.ToFloat(v)
	if !ok {
		x.fail(path, fmt.Errorf("%w: %T", ErrUnsupported, v))
		return
	}
	x.emit(path, path, f, rule, nil)
}

func (x *extraction) tabular(t *jmx.Tabular) {
	for _, rule := range x.req.Match.Rules {
		field := rule.Field()
		if field == "" {
			continue
		}
		for _, row := range t.Rows {
			columns := []string{field}
			if field == "*" {
				columns = columns[:0]
				for k := range row.Values {
					columns = append(columns, k)
				}
				sort.Strings(columns)
			}

			var rowTags []string
			rowPath := x.req.Attribute + "." + strings.Join(row.Index, ".")
			if x.e.opts.TabularMode == Tagged {
				for i, name := range t.IndexNames {
					if i < len(row.Index) {
						rowTags = append(rowTags, name+":"+row.Index[i])
					}
				}
			}

			for _, col := range columns {
				v, ok := row.Values[col]
				if !ok {
					if field != "*" {
						x.fail(rowPath+"."+col, jmx.ErrNotFound)
					}
					continue
				}
				f, ok := jmx.ToFloat(v)
				if !ok {
					if field != "*" {
						x.fail(rowPath+"."+col, fmt.Errorf("%w: %T", ErrUnsupported, v))
					}
					continue
				}

				name := x.req.Attribute + "." + col
				if x.e.opts.TabularMode == Tagless {
					name = rowPath + "." + col
				}
				x.emit(name, rowPath+"."+col, f, rule, rowTags)
			}
		}
	}
}

func (x *extraction) statistic(s jmx.Statistic) {
	rule := x.wholeRule()
	if x.req.Match.Rules != nil && rule == nil {
		return
	}
	for _, field := range jmx.StatisticFields[s.Kind] {
		v, ok := s.Fields[field]
		if !ok {
			continue
		}
		path := x.req.Attribute + "." + field
		x.emit(path, path, v, rule, nil)
	}
}

// wholeRule returns the rule addressing the attribute as a whole.
func (x *extraction) wholeRule() *filter.AttrRule {
	for _, r := range x.req.Match.Rules {
		if r.Field() == "" {
			return r
		}
	}
	return nil
}

func (x *extraction) emit(namePath, keyPath string, value float64, rule *filter.AttrRule, extraTags []string) {
	f := x.req.Match.Filter

	typ := filter.Gauge
	switch {
	case rule != nil && rule.MetricType != "":
		typ = rule.MetricType
	case f.MetricType != "":
		typ = f.MetricType
	}

	tags := append(append(make([]string, 0, len(x.baseTags)+len(extraTags)), x.baseTags...), extraTags...)
	if len(extraTags) > 0 {
		sort.Strings(tags)
	}

	x.out = append(x.out, Candidate{
		Name:  x.e.metricName(x.req, namePath, rule),
		Value: value,
		Type:  typ,
		Tags:  tags,
		Match: x.req.Match,
		Src:   x.req.Bean,
		Path:  keyPath,
	})
}

func (e *Extractor) beanTags(bean objectname.ObjectName, f *filter.Filter) []string {
	exclude := make(map[string]bool, len(f.ExcludeTags))
	for _, t := range f.ExcludeTags {
		exclude[t] = true
	}

	tags := []string{"jmx_domain:" + bean.Domain}
	for _, p := range bean.Props {
		if exclude[p.Key] || e.excludeTags[p.Key] {
			continue
		}
		v := objectname.Unquote(p.Value)
		if e.opts.NormalizeBeanParamTags {
			v = NormalizeName(v)
		}
		tags = append(tags, p.Key+":"+v)
	}
	sort.Strings(tags)
	return tags
}

func lookup(c jmx.Composite, path string) (any, bool) {
	cur := c
	for {
		head, rest, nested := strings.Cut(path, ".")
		v, ok := cur[head]
		if !ok {
			return nil, false
		}
		if !nested {
			return v, true
		}
		if cur, ok = v.(jmx.Composite); !ok {
			return nil, false
		}
		path = rest
	}
}
