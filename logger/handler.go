// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/lmittmann/tint"
)

// Records are written either as logfmt for netdata (and the journal) or colored for a terminal.
// Terminal output carries the caller in debug mode, so Logger methods must keep a fixed call depth.

const termCallDepth = 4 // slog.Logger.Log, slog.Logger.log, Logger.log, Logger.<Level>

const levelTermNotice = "\u001B[34m" + "NTC" + "\u001B[0m"

func newTextHandler() slog.Handler {
	return newTextHandlerTo(os.Stderr)
}

func newTextHandlerTo(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       Level.lvl,
		ReplaceAttr: replaceTextAttr,
	})
}

func replaceTextAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		// journald stamps records itself
		if isJournal {
			return slog.Attr{}
		}
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(a.Key, levelName(lvl))
		}
	}
	return a
}

func newTerminalHandler() slog.Handler {
	h := tint.NewHandler(os.Stderr, &tint.Options{
		NoColor:     runtime.GOOS == "windows",
		AddSource:   true,
		Level:       Level.lvl,
		ReplaceAttr: replaceTermAttr,
	})
	return &callerHandler{depth: termCallDepth, next: h}
}

func replaceTermAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		return slog.Attr{}
	case slog.SourceKey:
		if !Level.Enabled(slog.LevelDebug) {
			return slog.Attr{}
		}
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == levelNotice {
			return slog.String(a.Key, levelTermNotice)
		}
	}
	return a
}

// callerHandler points the record PC at the Logger method caller instead of this package.
type callerHandler struct {
	depth int
	next  slog.Handler
}

func (h *callerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *callerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &callerHandler{depth: h.depth, next: h.next.WithAttrs(attrs)}
}

func (h *callerHandler) WithGroup(name string) slog.Handler {
	return &callerHandler{depth: h.depth, next: h.next.WithGroup(name)}
}

func (h *callerHandler) Handle(ctx context.Context, r slog.Record) error {
	var pcs [1]uintptr
	// +2: runtime.Callers and Handle
	runtime.Callers(h.depth+2, pcs[:])
	r.PC = pcs[0]
	return h.next.Handle(ctx, r)
}
