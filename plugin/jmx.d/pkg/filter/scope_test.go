// SPDX-License-Identifier: GPL-3.0-or-later

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

func TestCommonScopes(t *testing.T) {
	tests := map[string]struct {
		includes []Block
		want     []string
	}{
		"shared literal": {
			includes: []Block{
				{"domain": "kafka.server", "type": "BrokerTopicMetrics", "name": "BytesInPerSec"},
				{"domain": "kafka.server", "type": "BrokerTopicMetrics", "name": "BytesOutPerSec"},
			},
			want: []string{"kafka.server:type=BrokerTopicMetrics,*"},
		},
		"conflicting literal is dropped": {
			includes: []Block{
				{"domain": "kafka.server", "type": "BrokerTopicMetrics"},
				{"domain": "kafka.server", "type": "ReplicaManager"},
			},
			want: []string{"kafka.server:*"},
		},
		"regex and wildcard do not narrow": {
			includes: []Block{
				{"domain": "d", "type": "Pool", "name": "/db.*/"},
				{"domain": "d", "type": "Pool", "name": "*"},
			},
			want: []string{"d:type=Pool,*"},
		},
		"optional key does not narrow": {
			includes: []Block{{"domain": "d", "type?": "Pool"}},
			want:     []string{"d:*"},
		},
		"domains in declaration order": {
			includes: []Block{
				{"domain": "b", "type": "X"},
				{"domain": "a"},
				{"domain": "b", "type": "X", "name": "n"},
			},
			want: []string{"b:type=X,*", "a:*"},
		},
		"literal bean names": {
			includes: []Block{
				{"bean": []any{"java.lang:type=Memory", "java.lang:type=Threading"}},
			},
			want: []string{"java.lang:*"},
		},
		"single literal bean": {
			includes: []Block{{"bean_name": "java.lang:type=Memory"}},
			want:     []string{"java.lang:type=Memory,*"},
		},
		"unknown domain": {
			includes: []Block{
				{"domain": "a", "type": "X"},
				{"domain_regex": "b.*"},
			},
			want: []string{"*:*"},
		},
		"no includes": {
			want: []string{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var confs []Conf
			for _, b := range test.includes {
				confs = append(confs, Conf{Include: b})
			}
			fs, err := Parse(confs)
			require.NoError(t, err)

			got := []string{}
			for _, s := range fs.Scopes() {
				got = append(got, s.String())
			}
			assert.Equal(t, test.want, got)
		})
	}
}

func TestCommonScopes_NeverMissesAMatch(t *testing.T) {
	fs, err := Parse([]Conf{
		{Include: Block{"domain": "d", "type": "Pool", "name": "a"}},
		{Include: Block{"domain": "d", "type": "Pool", "kind": "/x|y/"}},
		{Include: Block{"bean": "d:type=Pool,name=b,kind=z"}},
	})
	require.NoError(t, err)

	beans := []string{
		"d:type=Pool,name=a",
		"d:type=Pool,kind=x",
		"d:type=Pool,name=b,kind=z",
		"d:type=Cache,name=a",
	}

	scopes := fs.Scopes()
	require.Len(t, scopes, 1)

	for _, s := range beans {
		bean := objectname.MustParse(s)
		if fs.MatchBean(bean) {
			assert.True(t, scopes[0].Pattern().Matches(bean), s)
		}
	}
}

func TestScope_Patterns(t *testing.T) {
	tests := map[string]struct {
		scope Scope
		want  []string
	}{
		"unknown domain": {
			scope: Scope{},
			want:  []string{"*:*"},
		},
		"domain only": {
			scope: Scope{Domain: "java.lang"},
			want:  []string{"java.lang:*"},
		},
		"plain and quoted forms": {
			scope: Scope{Domain: "Catalina", Props: []objectname.Property{
				{Key: "type", Value: "ThreadPool"},
				{Key: "name", Value: "http-nio-8080"},
			}},
			want: []string{
				`Catalina:type=ThreadPool,name=http-nio-8080,*`,
				`Catalina:type=ThreadPool,name="http-nio-8080",*`,
				`Catalina:type="ThreadPool",name=http-nio-8080,*`,
				`Catalina:type="ThreadPool",name="http-nio-8080",*`,
			},
		},
		"value that needs quoting": {
			scope: Scope{Domain: "app", Props: []objectname.Property{{Key: "name", Value: `"a,b"`}}},
			want:  []string{`app:name="a,b",*`},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var got []string
			for _, p := range test.scope.Patterns() {
				got = append(got, p.String())
			}
			assert.Equal(t, test.want, got)
		})
	}
}

func TestScope_Patterns_LimitsExpansion(t *testing.T) {
	scope := Scope{Domain: "d", Props: []objectname.Property{
		{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "c", Value: "3"}, {Key: "d", Value: "4"},
	}}

	patterns := scope.Patterns()

	assert.Len(t, patterns, 8)
	for _, p := range patterns {
		_, ok := p.Get("d")
		assert.False(t, ok, p.String())
	}
}

func TestCommonScopes_NeverMissesAQuotedMatch(t *testing.T) {
	fs, err := Parse([]Conf{
		{Include: Block{"domain": "Catalina", "type": "ThreadPool", "name": "http-nio-8080"}},
		{Include: Block{"domain": "Catalina", "type": "ThreadPool", "name": "http-nio-8080", "attribute": "maxThreads"}},
	})
	require.NoError(t, err)

	scopes := fs.Scopes()
	require.Len(t, scopes, 1)
	assert.Equal(t, "Catalina:type=ThreadPool,name=http-nio-8080,*", scopes[0].String())

	beans := []string{
		`Catalina:type=ThreadPool,name="http-nio-8080"`,
		`Catalina:type=ThreadPool,name=http-nio-8080`,
		`Catalina:type="ThreadPool",name="http-nio-8080"`,
		`Catalina:type=ThreadPool,name="ajp-nio-8009"`,
	}

	for _, s := range beans {
		bean := objectname.MustParse(s)
		if !fs.MatchBean(bean) {
			continue
		}
		var found bool
		for _, p := range scopes[0].Patterns() {
			found = found || p.Matches(bean)
		}
		assert.True(t, found, s)
	}
}
