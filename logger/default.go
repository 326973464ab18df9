// SPDX-License-Identifier: GPL-3.0-or-later

package logger

// defaultLogger is used before the agent and its components create their own loggers.
var defaultLogger = New()

func Errorf(format string, a ...any) { defaultLogger.Errorf(format, a...) }
