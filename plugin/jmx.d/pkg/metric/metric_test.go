// SPDX-License-Identifier: GPL-3.0-or-later

package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeTags(t *testing.T) {
	tests := map[string]struct {
		lists [][]string
		want  []string
	}{
		"empty":      {want: []string{}},
		"sorted":     {lists: [][]string{{"b:1"}, {"a:1"}}, want: []string{"a:1", "b:1"}},
		"duplicates": {lists: [][]string{{"a:1", "b:1"}, {"b:1", "c:1"}, {"a:1"}}, want: []string{"a:1", "b:1", "c:1"}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, MergeTags(test.lists...))
		})
	}
}

func TestTagValue(t *testing.T) {
	tags := []string{"instance:kafka", "url:http://h:8778"}

	v, ok := TagValue(tags, "url")
	assert.True(t, ok)
	assert.Equal(t, "http://h:8778", v)

	_, ok = TagValue(tags, "missing")
	assert.False(t, ok)
}

func TestSample_ID(t *testing.T) {
	s := Sample{Name: "jvm.threads", Tags: []string{"a:1", "b:2"}}
	assert.Equal(t, "jvm.threads{a:1,b:2}", s.ID())
}
