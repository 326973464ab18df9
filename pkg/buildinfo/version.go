// SPDX-License-Identifier: GPL-3.0-or-later

package buildinfo

import "fmt"

// Version stores the agent's version number. It's set during the build process using build flags.
var Version = "v0.0.0"

// Info returns a one-line build description for startup logs.
func Info() string {
	return fmt.Sprintf("version=%s", Version)
}
