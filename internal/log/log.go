// Package log configures the process logger and hands out
// component-scoped children of it.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs a stdout logger at level as the slog default and returns
// it. Production deployments log JSON for the collector; development logs
// text.
func Setup(level string, production bool) *slog.Logger {
	l := New(os.Stdout, level, production)
	slog.SetDefault(l)
	return l
}

// New builds a logger writing JSON or text to w.
func New(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Component tags base with a component name. A nil base means
// slog.Default.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
