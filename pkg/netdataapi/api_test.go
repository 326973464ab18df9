// SPDX-License-Identifier: GPL-3.0-or-later

package netdataapi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	require.NotNil(t, New(&bytes.Buffer{}))
	require.Panics(t, func() { New(nil) })
}

func TestAPI(t *testing.T) {
	tests := map[string]struct {
		write func(a *API)
		want  string
	}{
		"chart": {
			write: func(a *API) {
				a.Chart(ChartOpts{
					TypeID:      "jmx_kafka",
					ID:          "jvm_heap_memory",
					Title:       "jvm.heap_memory",
					Units:       "value",
					Family:      "jvm",
					Context:     "jmx.jvm.heap_memory",
					ChartType:   "line",
					Priority:    70000,
					UpdateEvery: 10,
					Plugin:      "jmx.d",
					Module:      "jmx",
				})
			},
			want: "CHART 'jmx_kafka.jvm_heap_memory' '' 'jvm.heap_memory' 'value' 'jvm' 'jmx.jvm.heap_memory' " +
				"'line' '70000' '10' '' 'jmx.d' 'jmx'\n",
		},
		"dimension": {
			write: func(a *API) {
				a.Dimension(DimensionOpts{ID: "value", Name: "value", Algorithm: "absolute", Multiplier: 1, Divisor: 1000})
			},
			want: "DIMENSION 'value' 'value' 'absolute' '1' '1000' ''\n",
		},
		"labels": {
			write: func(a *API) {
				a.Label("type", "Memory")
				a.Label("name", "it's")
				a.CommitLabels()
			},
			want: "CLABEL 'type' 'Memory' '1'\nCLABEL 'name' 'its' '1'\nCLABEL_COMMIT\n",
		},
		"data": {
			write: func(a *API) {
				a.Begin("jmx_kafka", "jvm_heap_memory")
				a.Set("value", 1500)
				a.End()
			},
			want: "BEGIN 'jmx_kafka.jvm_heap_memory'\nSET 'value' = 1500\nEND\n\n",
		},
		"disable": {
			write: func(a *API) { a.Disable() },
			want:  "DISABLE\n",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			test.write(New(&buf))
			assert.Equal(t, test.want, buf.String())
		})
	}
}
