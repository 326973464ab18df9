// SPDX-License-Identifier: GPL-3.0-or-later

package reporter

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
)

var (
	testTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	heapSample = metric.Sample{
		Name:  "jvm.heap_memory",
		Value: 1024.5,
		Type:  filter.Gauge,
		Tags:  []string{"instance:kafka", "jmx_domain:java.lang", "type:Memory"},
		Time:  testTime,
	}
	gcSample = metric.Sample{
		Name:  "jvm.gc.collection_count",
		Value: 3,
		Type:  filter.Counter,
		Tags:  []string{"instance:kafka", "jmx_domain:java.lang", "name:G1 Young Generation", "type:GarbageCollector"},
		Time:  testTime,
	}
	canConnect = metric.ServiceCheck{
		Name:    "jmx.can_connect",
		Status:  metric.StatusCritical,
		Message: "connection refused",
		Tags:    []string{"instance:kafka"},
		Time:    testTime,
	}
)

func TestNew(t *testing.T) {
	tests := map[string]struct {
		kind    string
		wantErr bool
	}{
		"console":    {kind: KindConsole},
		"netdata":    {kind: KindNetdata},
		"prometheus": {kind: KindPrometheus},
		"unknown":    {kind: "statsd", wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := New(test.kind, 10)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Emit(heapSample)
	c.EmitServiceCheck(canConnect)
	assert.Zero(t, buf.Len())

	require.NoError(t, c.Flush())

	want := "2026-10-16T12:00:00Z metric jvm.heap_memory 1024.5 gauge [instance:kafka jmx_domain:java.lang type:Memory]\n" +
		"2026-10-16T12:00:00Z check jmx.can_connect CRITICAL \"connection refused\" [instance:kafka]\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, c.Flush())
	assert.Zero(t, buf.Len())
}

func TestNetdata(t *testing.T) {
	var buf bytes.Buffer
	n := NewNetdata(&buf, 10)

	n.Emit(heapSample)
	n.EmitServiceCheck(canConnect)
	require.NoError(t, n.Flush())

	out := buf.String()
	id := chartID(heapSample.Name, heapSample.Tags)
	assert.True(t, strings.HasPrefix(id, "jvm_heap_memory_"))
	assert.Contains(t, out, "CHART 'jmx_kafka."+id+"' '' 'jvm.heap_memory' 'value' 'jvm' 'jmx.jvm.heap_memory' 'line' '70001' '10' '' 'jmx.d' 'jmx'\n")
	assert.Contains(t, out, "DIMENSION 'value' 'value' 'absolute' '1' '1000' ''\n")
	assert.Contains(t, out, "CLABEL 'type' 'Memory' '1'\n")
	assert.Contains(t, out, "BEGIN 'jmx_kafka."+id+"'\nSET 'value' = 1024500\nEND\n")
	assert.Contains(t, out, "BEGIN 'jmx_kafka.jmx_can_connect'\nSET 'ok' = 0\nSET 'warning' = 0\nSET 'critical' = 1\nSET 'unknown' = 0\nEND\n")

	buf.Reset()
	n.Emit(heapSample)
	require.NoError(t, n.Flush())
	assert.NotContains(t, buf.String(), "CHART")
	assert.Contains(t, buf.String(), "SET 'value' = 1024500")
}

func TestNetdata_DistinctSeries(t *testing.T) {
	other := heapSample
	other.Tags = []string{"instance:kafka", "jmx_domain:java.lang", "type:Memory", "pool:young"}

	assert.NotEqual(t, chartID(heapSample.Name, heapSample.Tags), chartID(other.Name, other.Tags))
	assert.Equal(t, chartID(heapSample.Name, heapSample.Tags), chartID(heapSample.Name, heapSample.Tags))
}

func TestPrometheus(t *testing.T) {
	p := NewPrometheus()
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	p.Emit(heapSample)
	p.Emit(gcSample)
	p.EmitServiceCheck(canConnect)

	assert.NotContains(t, scrape(t, srv.URL), "jvm_heap_memory")

	require.NoError(t, p.Flush())
	body := scrape(t, srv.URL)

	assert.Contains(t, body, `jvm_heap_memory{instance="kafka",jmx_domain="java.lang",type="Memory"} 1024.5`)
	assert.Contains(t, body, `jvm_gc_collection_count{instance="kafka",jmx_domain="java.lang",name="G1 Young Generation",type="GarbageCollector"} 3`)
	assert.Contains(t, body, `jmx_can_connect{instance="kafka"} 2`)
	assert.Contains(t, body, "go_goroutines")

	require.NoError(t, p.Flush())
	assert.NotContains(t, scrape(t, srv.URL), "jvm_heap_memory")
}

func TestPrometheus_DifferentLabelSets(t *testing.T) {
	p := NewPrometheus()
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	a := heapSample
	b := heapSample
	b.Tags = []string{"instance:kafka", "pool:old"}
	b.Value = 7

	p.Emit(a)
	p.Emit(b)
	require.NoError(t, p.Flush())

	body := scrape(t, srv.URL)
	assert.Contains(t, body, `jvm_heap_memory{instance="kafka",jmx_domain="java.lang",type="Memory"} 1024.5`)
	assert.Contains(t, body, `jvm_heap_memory{instance="kafka",pool="old"} 7`)
}

func TestPromSanitize(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"valid":         {in: "jvm_heap", want: "jvm_heap"},
		"dash":          {in: "http-port", want: "http_port"},
		"leading digit": {in: "9lives", want: "_lives"},
		"empty":         {in: "", want: "_"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, promSanitize(test.in))
		})
	}
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewConsole(&a), NewConsole(&b)}

	m.Emit(heapSample)
	m.EmitServiceCheck(canConnect)
	require.NoError(t, m.Flush())

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, 2, strings.Count(a.String(), "\n"))
}

func scrape(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	bs, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(bs)
}
