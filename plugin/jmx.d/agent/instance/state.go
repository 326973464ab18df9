// SPDX-License-Identifier: GPL-3.0-or-later

package instance

type State int

const (
	Uninitialized State = iota
	Initializing
	Running
	Broken
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Broken:
		return "broken"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
