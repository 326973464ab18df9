// SPDX-License-Identifier: GPL-3.0-or-later

package instance

import (
	"context"
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/extract"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

func (i *Instance) collect(ctx context.Context, now time.Time) (*Result, error) {
	conn := i.currentConn()
	if conn == nil {
		return nil, &jmx.ConnectionError{Endpoint: i.dialer.Endpoint(), Err: ErrStopped}
	}

	if i.justRefreshed {
		i.justRefreshed = false
	} else if i.refreshDue(now) {
		if err := i.refresh(ctx, conn); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	beans := i.beans.Snapshot()
	i.tel.BeansFetched = len(beans)

	i.tags.Reset()
	templates := make([]map[string]string, 0, len(i.cfg.Filters.Includes()))
	for _, f := range i.cfg.Filters.Includes() {
		templates = append(templates, f.Tags)
	}
	i.tags.Prefetch(ctx, conn, templates...)

	var matchedBeans int
	limit := i.cfg.MaxReturnedMetrics

beans:
	for _, bean := range beans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		infos, err := i.attributes(ctx, conn, bean)
		if err != nil {
			if isFault(ctx, err) {
				return nil, err
			}
			if jmx.IsNotFound(err) {
				i.beans.Remove(bean)
				delete(i.attrs, beanKey(bean))
				i.Debugf("bean '%s' is gone", bean)
				continue
			}
			i.warnOnce("attrs#"+beanKey(bean), "failed to list attributes of '%s': %v", bean, err)
			continue
		}

		var matched bool
		for _, info := range infos {
			m := i.cfg.Filters.Match(bean, info.Name)
			if m.Decision != filter.Included {
				continue
			}
			matched = true
			i.tel.AttributesMatched++

			v, err := conn.Get(ctx, bean, info.Name)
			if err != nil {
				if isFault(ctx, err) {
					return nil, err
				}
				if jmx.IsNotFound(err) {
					delete(i.attrs, beanKey(bean))
				}
				i.warnOnce("get#"+beanKey(bean)+"#"+info.Name, "failed to read '%s' of '%s': %v", info.Name, bean, err)
				continue
			}

			cands, err := i.extractor.Extract(extract.Request{Bean: bean, Attribute: info.Name, Value: v, Match: m})
			if err != nil {
				i.warnOnce("extract#"+beanKey(bean)+"#"+info.Name, "skipping values of '%s' of '%s': %v", info.Name, bean, err)
			}

			for _, c := range cands {
				value, ok := i.rates.Observe(c.Key(), c.Type, c.Value, now)
				if !ok {
					continue
				}
				if len(res.Metrics) >= limit {
					res.LimitReached = true
					break beans
				}
				tags := metric.MergeTags(
					c.Tags,
					i.tags.Resolve(ctx, conn, m.Filter.Tags, bean, m.Groups),
					i.baseTags,
				)
				res.Metrics = append(res.Metrics, metric.Sample{
					Name:  c.Name,
					Value: value,
					Type:  c.Type,
					Tags:  tags,
					Time:  now,
				})
			}
		}
		if matched {
			matchedBeans++
		}
	}

	if res.LimitReached && !i.limitWarned {
		i.limitWarned = true
		i.Warningf("number of metrics exceeds the limit (%d), the rest is dropped; "+
			"narrow the filters or raise max_returned_metrics", limit)
	}

	i.tel.MetricsEmitted = len(res.Metrics)
	if len(beans) > 0 {
		i.tel.BeanMatchRatio = float64(matchedBeans) / float64(len(beans))
	}
	res.Telemetry = i.tel

	return res, nil
}

func (i *Instance) refreshDue(now time.Time) bool {
	if !i.cfg.EnableBeanSubscription || i.refreshedAt.IsZero() {
		return true
	}
	return now.Sub(i.refreshedAt) >= i.nextRefresh
}

// refresh replaces the bean set with the beans matched by the optimized query scopes.
func (i *Instance) refresh(ctx context.Context, conn jmx.Conn) error {
	seen := make(map[string]bool)
	var found []objectname.ObjectName

	for _, s := range i.cfg.Filters.Scopes() {
		if s.IsWildcard() || len(s.Props) == 0 {
			i.tel.WildcardQueries++
		}
		for _, pattern := range s.Patterns() {
			names, err := conn.Query(ctx, pattern)
			if err != nil {
				return err
			}
			for _, n := range names {
				key := beanKey(n)
				if seen[key] || !i.cfg.Filters.MatchBean(n) {
					continue
				}
				seen[key] = true
				found = append(found, n)
			}
		}
	}

	i.beans.Replace(found)
	i.attrs = make(map[string][]jmx.AttributeInfo)
	i.refreshedAt = i.now()
	i.nextRefresh = i.cfg.RefreshBeans
	i.Debugf("bean refresh: %d beans", len(found))

	return nil
}

func (i *Instance) attributes(ctx context.Context, conn jmx.Conn, bean objectname.ObjectName) ([]jmx.AttributeInfo, error) {
	key := beanKey(bean)
	if infos, ok := i.attrs[key]; ok {
		return infos, nil
	}
	infos, err := conn.Attributes(ctx, bean)
	if err != nil {
		return nil, err
	}
	i.attrs[key] = infos
	return infos, nil
}
