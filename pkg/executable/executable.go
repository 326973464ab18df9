// SPDX-License-Identifier: GPL-3.0-or-later

// Package executable names the running plugin. Netdata installs it as "jmx.d.plugin"; the name without
// the ".plugin" suffix is used in logs, the User-Agent header and the CLI usage line.
package executable

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultName = "jmx.d"

var Name = nameOf(os.Args, os.Executable)

func nameOf(args []string, exe func() (string, error)) string {
	path, err := exe()
	if err != nil || path == "" {
		if len(args) == 0 || args[0] == "" {
			return defaultName
		}
		path = args[0]
	}

	name := strings.TrimSuffix(filepath.Base(path), ".plugin")
	if strings.HasSuffix(name, ".test") {
		return "test"
	}
	return name
}
