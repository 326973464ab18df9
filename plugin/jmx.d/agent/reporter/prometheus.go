// SPDX-License-Identifier: GPL-3.0-or-later

package reporter

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/extract"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
)

type promSeries struct {
	name   string
	help   string
	labels map[string]string
	value  float64
}

// Prometheus keeps the series of the last flushed iteration and exposes them over HTTP.
// Service checks are exported as gauges: 0 ok, 1 warning, 2 critical, 3 unknown.
type Prometheus struct {
	reg *prometheus.Registry

	pending []promSeries

	mu      sync.RWMutex
	current []promSeries
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{reg: prometheus.NewRegistry()}
	p.reg.MustRegister(
		p,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Prometheus) Emit(s metric.Sample) {
	p.pending = append(p.pending, promSeries{
		name:   promName(s.Name),
		help:   "JMX metric " + s.Name,
		labels: promLabels(s.Tags),
		value:  s.Value,
	})
}

func (p *Prometheus) EmitServiceCheck(sc metric.ServiceCheck) {
	p.pending = append(p.pending, promSeries{
		name:   promName(sc.Name),
		help:   "Service check " + sc.Name + " status: 0 ok, 1 warning, 2 critical, 3 unknown",
		labels: promLabels(sc.Tags),
		value:  float64(sc.Status),
	})
}

func (p *Prometheus) Flush() error {
	p.mu.Lock()
	p.current, p.pending = p.pending, nil
	p.mu.Unlock()
	return nil
}

// Describe sends no descriptors: the series set changes between iterations.
func (p *Prometheus) Describe(chan<- *prometheus.Desc) {}

func (p *Prometheus) Collect(ch chan<- prometheus.Metric) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]bool)
	for _, s := range p.current {
		names := make([]string, 0, len(s.labels))
		for k := range s.labels {
			names = append(names, k)
		}
		sort.Strings(names)
		values := make([]string, len(names))
		for i, n := range names {
			values[i] = s.labels[n]
		}

		id := s.name + "\xff" + strings.Join(names, "\xff") + "\xff" + strings.Join(values, "\xff")
		if seen[id] {
			continue
		}
		seen[id] = true

		desc := prometheus.NewDesc(s.name, s.help, names, nil)
		m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.value, values...)
		if err != nil {
			ch <- prometheus.NewInvalidMetric(desc, err)
			continue
		}
		ch <- m
	}
}

func promName(name string) string {
	return promSanitize(strings.ReplaceAll(extract.NormalizeName(name), ".", "_"))
}

func promLabels(tags []string) map[string]string {
	labels := make(map[string]string, len(tags))
	for _, t := range tags {
		k, v, ok := strings.Cut(t, ":")
		if !ok {
			k, v = t, ""
		}
		k = promSanitize(k)
		if strings.HasPrefix(k, "__") {
			k = "tag" + k
		}
		if _, dup := labels[k]; !dup {
			labels[k] = v
		}
	}
	return labels
}

func promSanitize(s string) string {
	if s == "" {
		return "_"
	}
	b := []byte(s)
	for i, c := range b {
		ok := c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			b[i] = '_'
		}
	}
	return string(b)
}
