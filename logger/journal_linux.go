// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package logger

import (
	"os"

	"github.com/coreos/go-systemd/v22/journal"
)

// isStderrConnectedToJournal reports whether stderr is a journald stream. Netdata sets
// NETDATA_SYSTEMD_JOURNAL_PATH for plugins it spawns under systemd, the stream check covers the rest.
func isStderrConnectedToJournal() bool {
	if os.Getenv("NETDATA_SYSTEMD_JOURNAL_PATH") != "" && journal.Enabled() {
		return true
	}
	ok, _ := journal.StderrIsJournalStream()
	return ok
}
