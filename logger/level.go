// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"log/slog"
	"strings"
)

const (
	levelNotice  = slog.Level(2)
	levelDisable = slog.Level(99)
)

// levelByName maps netdata log level names (NETDATA_LOG_LEVEL) to slog levels.
var levelByName = map[string]slog.Level{
	"emergency": levelDisable,
	"alert":     levelDisable,
	"critical":  levelDisable,
	"err":       slog.LevelError,
	"error":     slog.LevelError,
	"warn":      slog.LevelWarn,
	"warning":   slog.LevelWarn,
	"notice":    levelNotice,
	"info":      slog.LevelInfo,
	"debug":     slog.LevelDebug,
}

// Level is the process-wide minimum level shared by every Logger.
var Level = &level{lvl: &slog.LevelVar{}}

type level struct {
	lvl *slog.LevelVar
}

func (l *level) Enabled(level slog.Level) bool {
	return level >= l.lvl.Level()
}

func (l *level) Set(level slog.Level) {
	l.lvl.Set(level)
}

// SetByName sets the level from a netdata log level name. Unknown names leave the level unchanged.
func (l *level) SetByName(name string) bool {
	lvl, ok := levelByName[strings.ToLower(strings.TrimSpace(name))]
	if ok {
		l.lvl.Set(lvl)
	}
	return ok
}

// Name returns the lowercase name of the current level.
func (l *level) Name() string {
	return levelName(l.lvl.Level())
}

func levelName(lvl slog.Level) string {
	switch lvl {
	case levelNotice:
		return "notice"
	case levelDisable:
		return "disabled"
	default:
		return strings.ToLower(lvl.String())
	}
}
