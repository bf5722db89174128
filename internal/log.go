package internal

import (
	"context"
	"log/slog"
)

// LogEnabled reports whether l would emit a record at lvl, letting callers
// skip building expensive attrs (neighbor dumps, hex payloads) when the
// logger is configured above that level.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs is the helper used by every package logger in this module so a
// nil *slog.Logger (component constructed without one) is always safe to
// call into.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
