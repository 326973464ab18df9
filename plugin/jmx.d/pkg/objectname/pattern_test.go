// SPDX-License-Identifier: GPL-3.0-or-later

package objectname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName_Matches(t *testing.T) {
	bean := MustParse("java.lang:type=GarbageCollector,name=G1 Old Generation")

	tests := map[string]struct {
		pattern string
		want    bool
	}{
		"match all":              {pattern: "*:*", want: true},
		"domain wildcard":        {pattern: "java.*:*", want: true},
		"domain single char":     {pattern: "java.lan?:*", want: true},
		"other domain":           {pattern: "kafka.server:*", want: false},
		"property subset":        {pattern: "java.lang:type=GarbageCollector,*", want: true},
		"property value differs": {pattern: "java.lang:type=Memory,*", want: false},
		"exact name":             {pattern: "java.lang:name=G1 Old Generation,type=GarbageCollector", want: true},
		"exact name missing key": {pattern: "java.lang:type=GarbageCollector", want: false},
		"value wildcard":         {pattern: "java.lang:type=GarbageCollector,name=*", want: true},
		"missing key":            {pattern: "java.lang:scope=x,*", want: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, MustParse(test.pattern).Matches(bean))
		})
	}
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("*", ""))
	assert.True(t, globMatch("a*c", "abbbc"))
	assert.False(t, globMatch("a*c", "abbb"))
	assert.True(t, globMatch("a?c", "abc"))
	assert.False(t, globMatch("a?c", "ac"))
}
