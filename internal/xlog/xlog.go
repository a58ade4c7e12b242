// Package xlog provides the small structured-logging helper embedded by the
// tcp and iface packages, following the embedding pattern used throughout
// this module's teacher for per-type debug/trace logging.
package xlog

import (
	"context"
	"log/slog"
)

// LevelTrace sits below [slog.LevelDebug] for the high-frequency,
// per-segment tracing that would otherwise drown out ordinary debug output.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Logger is embedded by value in connection/listener/table types to give
// them debug/trace/error logging without forcing every constructor to take
// a *slog.Logger positionally.
type Logger struct {
	Log *slog.Logger
}

// SetLogger installs l, which may be nil to disable logging.
func (g *Logger) SetLogger(l *slog.Logger) { g.Log = l }

func (g *Logger) enabled(lvl slog.Level) bool {
	return g.Log != nil && g.Log.Handler().Enabled(context.Background(), lvl)
}

func (g *Logger) logAttrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	if g.Log != nil {
		g.Log.LogAttrs(context.Background(), lvl, msg, attrs...)
	}
}

// Trace logs high-frequency per-segment events.
func (g *Logger) Trace(msg string, attrs ...slog.Attr) { g.logAttrs(LevelTrace, msg, attrs...) }

// TraceEnabled reports whether trace-level logging is active, letting
// callers skip building attrs for a disabled logger.
func (g *Logger) TraceEnabled() bool { return g.enabled(LevelTrace) }

// Debug logs state transitions and connection-table mutations.
func (g *Logger) Debug(msg string, attrs ...slog.Attr) { g.logAttrs(slog.LevelDebug, msg, attrs...) }

// Error logs a non-fatal, local failure (parse/IO error on one frame).
func (g *Logger) Error(msg string, attrs ...slog.Attr) { g.logAttrs(slog.LevelError, msg, attrs...) }
