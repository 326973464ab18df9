// SPDX-License-Identifier: GPL-3.0-or-later

package executable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameOf(t *testing.T) {
	tests := map[string]struct {
		args []string
		exe  func() (string, error)
		want string
	}{
		"plugin suffix": {
			exe:  func() (string, error) { return "/usr/libexec/netdata/plugins.d/jmx.d.plugin", nil },
			want: "jmx.d",
		},
		"no suffix": {
			exe:  func() (string, error) { return "/usr/local/bin/jmxd", nil },
			want: "jmxd",
		},
		"test binary": {
			exe:  func() (string, error) { return "/tmp/go-build/agent.test", nil },
			want: "test",
		},
		"fallback to args": {
			args: []string{"./jmx.d.plugin"},
			exe:  func() (string, error) { return "", errors.New("unsupported") },
			want: "jmx.d",
		},
		"default": {
			exe:  func() (string, error) { return "", errors.New("unsupported") },
			want: "jmx.d",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, nameOf(test.args, test.exe))
		})
	}
}
