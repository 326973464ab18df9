// SPDX-License-Identifier: GPL-3.0-or-later

package instance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx/jmxtest"
)

func newTestRegistry() *jmxtest.Registry {
	reg := jmxtest.NewRegistry()
	reg.AddBean("java.lang:type=Threading", map[string]any{"ThreadCount": 12, "DaemonThreadCount": 3})
	reg.AddBean("java.lang:type=Memory", map[string]any{
		"HeapMemoryUsage": jmx.Composite{"used": int64(100), "max": int64(1000)},
	})
	reg.AddBean("kafka.server:type=BrokerTopicMetrics,name=BytesInPerSec", map[string]any{"Count": int64(10)})
	return reg
}

func mustFilters(t *testing.T, confs ...filter.Conf) *filter.FilterSet {
	t.Helper()
	fs, err := filter.Parse(confs)
	require.NoError(t, err)
	return fs
}

func newTestInstance(t *testing.T, reg *jmxtest.Registry, cfg Config) *Instance {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	inst := New(cfg, reg.Dialer("test:9999"), logger.New())
	inst.Mute()
	t.Cleanup(inst.Stop)
	return inst
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleByName(samples []metric.Sample, name string) (metric.Sample, bool) {
	for _, s := range samples {
		if s.Name == name {
			return s, true
		}
	}
	return metric.Sample{}, false
}

func TestInstance_Collect(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{
		Tags: []string{"env:prod"},
		Filters: mustFilters(t,
			filter.Conf{Include: filter.Block{
				"domain":    "java.lang",
				"type":      "Threading",
				"attribute": map[string]any{"ThreadCount": map[string]any{"alias": "jvm.thread_count"}},
			}},
			filter.Conf{Include: filter.Block{
				"domain":    "java.lang",
				"type":      "Memory",
				"attribute": []any{"HeapMemoryUsage.used"},
			}},
		),
	})

	assert.Equal(t, Uninitialized, inst.State())

	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Running, inst.State())
	require.Len(t, res.Metrics, 2)

	s, ok := sampleByName(res.Metrics, "jvm.thread_count")
	require.True(t, ok)
	assert.Equal(t, 12.0, s.Value)
	assert.Equal(t, filter.Gauge, s.Type)
	assert.Equal(t, []string{"env:prod", "instance:test", "jmx_domain:java.lang", "type:Threading"}, s.Tags)

	s, ok = sampleByName(res.Metrics, "java.lang.memory.heap_memory_usage.used")
	require.True(t, ok)
	assert.Equal(t, 100.0, s.Value)

	assert.Equal(t, 2, res.Telemetry.BeansFetched)
	assert.Equal(t, 2, res.Telemetry.AttributesMatched)
	assert.Equal(t, 2, res.Telemetry.MetricsEmitted)
	assert.Equal(t, 1.0, res.Telemetry.BeanMatchRatio)
	assert.Equal(t, []string{"java.lang:*"}, reg.Queries())
	assert.Equal(t, 1, reg.Dials())
}

func TestInstance_Collect_QuotedBeanNames(t *testing.T) {
	reg := jmxtest.NewRegistry()
	reg.AddBean(`Catalina:type=ThreadPool,name="http-nio-8080"`, map[string]any{"currentThreadCount": 10})
	reg.AddBean(`Catalina:type=ThreadPool,name="ajp-nio-8009"`, map[string]any{"currentThreadCount": 4})
	inst := newTestInstance(t, reg, Config{
		Filters: mustFilters(t, filter.Conf{Include: filter.Block{
			"domain":    "Catalina",
			"type":      "ThreadPool",
			"name":      "http-nio-8080",
			"attribute": map[string]any{"currentThreadCount": map[string]any{"alias": "tomcat.threads.busy"}},
		}}),
	})

	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)

	s, ok := sampleByName(res.Metrics, "tomcat.threads.busy")
	require.True(t, ok)
	assert.Equal(t, 10.0, s.Value)
	assert.Contains(t, s.Tags, "name:http-nio-8080")
	assert.Len(t, reg.Queries(), 4)
}

func TestInstance_Collect_CounterNeedsBaseline(t *testing.T) {
	reg := newTestRegistry()
	clk := &clock{now: time.Unix(1000, 0)}
	inst := newTestInstance(t, reg, Config{
		Filters: mustFilters(t, filter.Conf{Include: filter.Block{
			"domain": "kafka.server",
			"type":   "BrokerTopicMetrics",
			"attribute": map[string]any{
				"Count": map[string]any{"alias": "kafka.bytes_in", "metric_type": "counter"},
			},
		}}),
	})
	inst.now = clk.Now

	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Metrics)

	reg.SetAttribute("kafka.server:type=BrokerTopicMetrics,name=BytesInPerSec", "Count", int64(25))
	clk.Add(time.Second * 10)

	res, err = inst.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	assert.Equal(t, "kafka.bytes_in", res.Metrics[0].Name)
	assert.Equal(t, 15.0, res.Metrics[0].Value)
	assert.Equal(t, filter.Counter, res.Metrics[0].Type)
}

func TestInstance_Collect_ConnectionLossAndRecovery(t *testing.T) {
	tests := map[string]struct {
		ctx         func() (context.Context, context.CancelFunc)
		wantCollect bool
	}{
		"no deadline: recovery only": {
			ctx:         func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			wantCollect: false,
		},
		"enough time left: recovery and collection": {
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), time.Minute)
			},
			wantCollect: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			reg := newTestRegistry()
			inst := newTestInstance(t, reg, Config{Filters: filter.DefaultJVM()})

			res, err := inst.Collect(context.Background())
			require.NoError(t, err)
			require.NotEmpty(t, res.Metrics)

			reg.SetDown(errors.New("connection refused"))

			res, err = inst.Collect(context.Background())
			require.Error(t, err)
			assert.True(t, jmx.IsConnectionError(err))
			assert.Nil(t, res)
			assert.Equal(t, Broken, inst.State())
			assert.Equal(t, 0, inst.LiveBeans())
			assert.Error(t, inst.Err())

			_, err = inst.Collect(context.Background())
			require.Error(t, err)
			assert.Equal(t, Broken, inst.State())

			reg.SetDown(nil)
			ctx, cancel := test.ctx()
			defer cancel()

			res, err = inst.Collect(ctx)
			require.NoError(t, err)
			assert.Equal(t, Running, inst.State())
			assert.NoError(t, inst.Err())
			if test.wantCollect {
				assert.False(t, res.Recovered)
				assert.NotEmpty(t, res.Metrics)
			} else {
				assert.True(t, res.Recovered)
				assert.Empty(t, res.Metrics)

				res, err = inst.Collect(ctx)
				require.NoError(t, err)
				assert.NotEmpty(t, res.Metrics)
			}
		})
	}
}

func TestInstance_Collect_FirstConnectFailure(t *testing.T) {
	reg := newTestRegistry()
	reg.SetDown(errors.New("connection refused"))
	inst := newTestInstance(t, reg, Config{Filters: filter.DefaultJVM()})

	_, err := inst.Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, Broken, inst.State())
	assert.Equal(t, 0, reg.Dials())
}

func TestInstance_Collect_MetricLimit(t *testing.T) {
	reg := jmxtest.NewRegistry()
	for i := range 5 {
		reg.AddBean(fmt.Sprintf("app:type=Pool,name=p%d", i), map[string]any{"Size": i})
	}
	inst := newTestInstance(t, reg, Config{
		MaxReturnedMetrics: 3,
		Filters:            mustFilters(t, filter.Conf{Include: filter.Block{"domain": "app", "type": "Pool"}}),
	})

	for range 2 {
		res, err := inst.Collect(context.Background())
		require.NoError(t, err)
		assert.Len(t, res.Metrics, 3)
		assert.True(t, res.LimitReached)
	}
	assert.True(t, inst.limitWarned)
}

func TestInstance_Collect_ExcludedAttributes(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{
		Filters: mustFilters(t, filter.Conf{
			Include: filter.Block{"domain": "java.lang", "type": "Threading"},
			Exclude: filter.Block{"attribute": []any{"DaemonThreadCount"}},
		}),
	})

	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	assert.Equal(t, "java.lang.threading.thread_count", res.Metrics[0].Name)
}

func TestInstance_Collect_BeanVanishes(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{
		EnableBeanSubscription: true,
		RefreshBeans:           time.Hour,
		Filters:                filter.DefaultJVM(),
	})

	_, err := inst.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, inst.LiveBeans())

	// Unregister without the subscription noticing it.
	reg.DropSubscriptions(nil)
	reg.RemoveBean("java.lang:type=Memory")

	// The first read fails and drops the cached attribute list; the next listing finds the bean gone.
	_, err = inst.Collect(context.Background())
	require.NoError(t, err)
	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Running, inst.State())
	assert.Equal(t, 1, inst.LiveBeans())
	_, ok := sampleByName(res.Metrics, "jvm.thread_count")
	assert.True(t, ok)
}

func TestInstance_Subscription(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{
		EnableBeanSubscription: true,
		RefreshBeans:           time.Hour,
		Filters:                filter.DefaultJVM(),
	})

	_, err := inst.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inst.LiveBeans())

	reg.AddBean("java.lang:type=GarbageCollector,name=G1 Young Generation", map[string]any{"CollectionCount": int64(1)})
	reg.AddBean("com.example:type=Ignored", map[string]any{"Value": 1})

	assert.Eventually(t, func() bool { return inst.LiveBeans() == 3 }, time.Second*5, time.Millisecond*10)

	reg.RemoveBean("java.lang:type=Threading")
	assert.Eventually(t, func() bool { return inst.LiveBeans() == 2 }, time.Second*5, time.Millisecond*10)

	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	_, ok := sampleByName(res.Metrics, "jvm.thread_count")
	assert.False(t, ok)
	assert.Len(t, reg.Queries(), 1)

	reg.DropSubscriptions(errors.New("notification listener removed"))
	assert.Eventually(t, func() bool { return inst.State() == Broken }, time.Second*5, time.Millisecond*10)
	assert.True(t, jmx.IsConnectionError(inst.Err()))
}

func TestInstance_RefreshWithoutSubscription(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{Filters: filter.DefaultJVM()})

	for range 3 {
		_, err := inst.Collect(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, reg.Queries(), 3)

	reg.AddBean("java.lang:type=Runtime", map[string]any{"Uptime": int64(1000)})
	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	_, ok := sampleByName(res.Metrics, "jvm.uptime")
	assert.True(t, ok)
}

func TestInstance_MinCollectionInterval(t *testing.T) {
	reg := newTestRegistry()
	clk := &clock{now: time.Unix(1000, 0)}
	inst := newTestInstance(t, reg, Config{
		MinCollectionInterval: time.Second * 30,
		Filters:               filter.DefaultJVM(),
	})
	inst.now = clk.Now

	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	clk.Add(time.Second * 15)
	res, err = inst.Collect(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Metrics)

	clk.Add(time.Second * 15)
	res, err = inst.Collect(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
}

func TestInstance_MarkBroken(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{Filters: filter.DefaultJVM()})

	_, err := inst.Collect(context.Background())
	require.NoError(t, err)

	inst.MarkBroken(errors.New("collection timed out"))
	assert.Equal(t, Broken, inst.State())
	assert.EqualError(t, inst.Err(), "collection timed out")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := inst.Collect(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Metrics)
	assert.Equal(t, 2, reg.Dials())
}

func TestInstance_Busy(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{Filters: filter.DefaultJVM()})
	_, err := inst.Collect(context.Background())
	require.NoError(t, err)

	reg.SetQueryDelay(time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = inst.Collect(context.Background())
	}()

	require.Eventually(t, func() bool { return len(reg.Queries()) == 2 }, time.Second*5, time.Millisecond)
	_, err = inst.Collect(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	<-done
}

func TestInstance_Timeout(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{Filters: filter.DefaultJVM()})
	_, err := inst.Collect(context.Background())
	require.NoError(t, err)

	reg.SetQueryDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()

	res, err := inst.Collect(ctx)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, Broken, inst.State())
}

func TestInstance_Stop(t *testing.T) {
	reg := newTestRegistry()
	inst := newTestInstance(t, reg, Config{EnableBeanSubscription: true, Filters: filter.DefaultJVM()})

	_, err := inst.Collect(context.Background())
	require.NoError(t, err)

	inst.Stop()
	inst.Stop()
	assert.Equal(t, Stopped, inst.State())

	_, err = inst.Collect(context.Background())
	assert.ErrorIs(t, err, ErrStopped)

	inst.MarkBroken(errors.New("late"))
	assert.Equal(t, Stopped, inst.State())
}

func TestInstance_DynamicTags(t *testing.T) {
	reg := newTestRegistry()
	reg.AddBean("java.lang:type=Runtime", map[string]any{"VmVendor": "Eclipse Adoptium"})
	inst := newTestInstance(t, reg, Config{
		Filters: mustFilters(t, filter.Conf{Include: filter.Block{
			"domain":    "java.lang",
			"type":      "Threading",
			"attribute": []any{"ThreadCount"},
			"tags": map[string]any{
				"vendor":  "$java.lang:type=Runtime#VmVendor",
				"kind":    "$type",
				"missing": "$java.lang:type=Nope#Value",
			},
		}}),
	})

	res, err := inst.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	tags := res.Metrics[0].Tags
	assert.Contains(t, tags, "vendor:Eclipse Adoptium")
	assert.Contains(t, tags, "kind:Threading")
	for _, tag := range tags {
		assert.NotContains(t, tag, "missing:")
	}
}
