// SPDX-License-Identifier: GPL-3.0-or-later

package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/instance"
)

func TestWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jmxd-status.yaml")
	w := NewWriter(path, logger.New())
	w.Mute()
	defer func() { _ = w.Close() }()

	report := Report{
		Timestamp: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
		Iteration: 7,
		Duration:  "1.2s",
		Instances: []InstanceStatus{
			{
				Name:        "kafka",
				Check:       "kafka",
				State:       "running",
				Status:      OK,
				MetricCount: 42,
				LiveBeans:   10,
				Telemetry: instance.Telemetry{
					BeansFetched:      10,
					AttributesMatched: 40,
					MetricsEmitted:    42,
					WildcardQueries:   1,
					BeanMatchRatio:    0.5,
				},
			},
			{
				Name:    "tomcat",
				State:   "broken",
				Status:  Error,
				Message: "connection refused",
			},
		},
	}

	require.NoError(t, w.Write(report))

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "bean_match_ratio: 0.5")
	assert.Contains(t, string(bs), "message: connection refused")

	got, err := Read(path)
	require.NoError(t, err)
	assert.True(t, report.Timestamp.Equal(got.Timestamp))
	got.Timestamp = report.Timestamp
	assert.Equal(t, report, *got)

	report.Iteration = 8
	require.NoError(t, w.Write(report))
	got, err = Read(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Iteration)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"jmxd-status.yaml", "jmxd-status.yaml.lock"}, names)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
