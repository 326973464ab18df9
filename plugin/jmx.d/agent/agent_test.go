// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/instance"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/orchestrator"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/reporter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/status"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx/jmxtest"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jolokia"
)

const appConfig = `
init_config:
  collect_default_jvm_metrics: false
  service_check_prefix: app
  conf:
    - include:
        domain: java.lang
        type: Threading
instances:
  - name: app-1
    url: http://app-1:8778/jolokia
  - name: app-2
    url: http://app-2:8778/jolokia
`

type testEnv struct {
	agent *Agent
	out   *bytes.Buffer
	dir   string
	regs  map[string]*jmxtest.Registry
}

func newTestEnv(t *testing.T, cfg Config, config string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	writeConfig(t, dir, config)

	env := &testEnv{
		out:  &bytes.Buffer{},
		dir:  dir,
		regs: make(map[string]*jmxtest.Registry),
	}

	cfg.ConfigDirs = []string{dir}
	cfg.Check = "app"
	if cfg.Reporter == nil {
		cfg.Reporter = reporter.NewConsole(env.out)
	}

	a := New(cfg)
	a.Mute()
	a.newDialer = func(c jolokia.Config) (jmx.Dialer, error) {
		reg, ok := env.regs[c.URL]
		if !ok {
			reg = jmxtest.NewRegistry()
			reg.AddBean("java.lang:type=Threading", map[string]any{"ThreadCount": 12, "DaemonThreadCount": 3})
			env.regs[c.URL] = reg
		}
		return reg.Dialer(c.URL), nil
	}
	env.agent = a
	t.Cleanup(a.stopAll)

	return env
}

func writeConfig(t *testing.T, dir, config string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(config), 0644))
}

func linesWith(out string, parts ...string) int {
	var n int
	for _, line := range strings.Split(out, "\n") {
		ok := line != ""
		for _, p := range parts {
			ok = ok && strings.Contains(line, p)
		}
		if ok {
			n++
		}
	}
	return n
}

func TestAgent_RunOnce(t *testing.T) {
	statusFile := filepath.Join(t.TempDir(), "status.yaml")
	env := newTestEnv(t, Config{RunOnce: true, StatusFile: statusFile}, appConfig)

	require.NoError(t, env.agent.load())
	env.regs["http://app-2:8778/jolokia"].SetDown(errors.New("connection refused"))

	require.NoError(t, env.agent.Run(context.Background()))

	out := env.out.String()
	assert.Equal(t, 1, linesWith(out, " metric java.lang.threading.thread_count 12 gauge ", "instance:app-1"))
	assert.Equal(t, 1, linesWith(out, " metric java.lang.threading.daemon_thread_count 3 gauge ", "instance:app-1"))
	assert.Equal(t, 0, linesWith(out, " metric ", "instance:app-2"))
	assert.Equal(t, 1, linesWith(out, " check app.can_connect OK ", "instance:app-1"))
	assert.Equal(t, 1, linesWith(out, " check app.can_connect CRITICAL ", "connection refused", "instance:app-2"))

	report, err := status.Read(statusFile)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Iteration)
	require.Len(t, report.Instances, 2)

	assert.Equal(t, "app-1", report.Instances[0].Name)
	assert.Equal(t, "app", report.Instances[0].Check)
	assert.Equal(t, status.OK, report.Instances[0].Status)
	assert.Equal(t, instance.Running.String(), report.Instances[0].State)
	assert.Equal(t, 2, report.Instances[0].MetricCount)
	assert.Equal(t, 1, report.Instances[0].LiveBeans)

	assert.Equal(t, "app-2", report.Instances[1].Name)
	assert.Equal(t, status.Error, report.Instances[1].Status)
	assert.Equal(t, instance.Broken.String(), report.Instances[1].State)
	assert.Contains(t, report.Instances[1].Message, "connection refused")
}

func TestAgent_Run_NoConfig(t *testing.T) {
	env := newTestEnv(t, Config{RunOnce: true}, "")
	require.NoError(t, os.Remove(filepath.Join(env.dir, "app.yaml")))

	assert.Error(t, env.agent.Run(context.Background()))
	assert.Empty(t, env.out.String())
}

func TestAgent_Reload(t *testing.T) {
	env := newTestEnv(t, Config{RunOnce: true}, appConfig)

	require.NoError(t, env.agent.load())
	before := env.agent.snapshot()
	require.Len(t, before, 2)

	writeConfig(t, env.dir, strings.Replace(appConfig, "http://app-2:8778/jolokia", "http://app-2:9999/jolokia", 1))
	require.NoError(t, env.agent.load())
	after := env.agent.snapshot()
	require.Len(t, after, 2)

	assert.Same(t, before[0], after[0])
	assert.NotSame(t, before[1], after[1])
	assert.Equal(t, instance.Stopped, before[1].inst.State())
	assert.Equal(t, "http://app-2:9999/jolokia", after[1].inst.Endpoint())

	writeConfig(t, env.dir, strings.Replace(appConfig, "  - name: app-2\n    url: http://app-2:8778/jolokia\n", "", 1))
	require.NoError(t, env.agent.load())
	require.Len(t, env.agent.snapshot(), 1)
	assert.Equal(t, instance.Stopped, after[1].inst.State())

	writeConfig(t, env.dir, "instances: [")
	assert.Error(t, env.agent.load())
	assert.Len(t, env.agent.snapshot(), 1, "running instances are kept when the new configuration is unusable")
}

func TestAgent_Run_Loop(t *testing.T) {
	env := newTestEnv(t, Config{UpdateEvery: time.Millisecond * 50}, appConfig)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.agent.Run(ctx) }()

	assert.Eventually(t, func() bool {
		env.agent.mu.Lock()
		defer env.agent.mu.Unlock()
		return env.agent.iteration >= 3
	}, time.Second*5, time.Millisecond*10)

	env.agent.Reload()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second * 5):
		t.Fatal("agent did not stop")
	}
}

func TestAgent_Watch(t *testing.T) {
	env := newTestEnv(t, Config{}, appConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = env.agent.watch(ctx) }()

	assert.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(env.dir, "app.yaml"), []byte(appConfig), 0644)
		return len(env.agent.reloadCh) == 1
	}, time.Second*10, time.Millisecond*1500)
}

func TestServiceCheck(t *testing.T) {
	reg := jmxtest.NewRegistry()
	inst := instance.New(instance.Config{Name: "app-1", ServiceCheckPrefix: "app", Tags: []string{"env:prod"}},
		reg.Dialer("app-1"), logger.New())
	inst.Mute()

	tests := map[string]struct {
		st          orchestrator.Status
		wantStatus  metric.CheckStatus
		wantMessage string
	}{
		"success": {
			st:         orchestrator.Status{Tag: orchestrator.StatusSuccess, Result: &instance.Result{}},
			wantStatus: metric.StatusOK,
		},
		"recovered": {
			st:         orchestrator.Status{Tag: orchestrator.StatusSuccess, Result: &instance.Result{Recovered: true}},
			wantStatus: metric.StatusOK,
		},
		"limit reached": {
			st:          orchestrator.Status{Tag: orchestrator.StatusSuccess, Result: &instance.Result{LimitReached: true}},
			wantStatus:  metric.StatusWarning,
			wantMessage: "metric limit reached, some metrics were dropped",
		},
		"timeout": {
			st:          orchestrator.Status{Tag: orchestrator.StatusTimeout, Err: orchestrator.ErrTimeout},
			wantStatus:  metric.StatusCritical,
			wantMessage: orchestrator.ErrTimeout.Error(),
		},
		"failure": {
			st:          orchestrator.Status{Tag: orchestrator.StatusFailure, Err: errors.New("boom")},
			wantStatus:  metric.StatusCritical,
			wantMessage: "boom",
		},
	}

	now := time.Now()
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sc := serviceCheck(inst, test.st, now)

			assert.Equal(t, "app.can_connect", sc.Name)
			assert.Equal(t, test.wantStatus, sc.Status)
			assert.Equal(t, test.wantMessage, sc.Message)
			assert.Equal(t, []string{"env:prod", "instance:app-1"}, sc.Tags)
			assert.Equal(t, now, sc.Time)
		})
	}
}
