// Package logger builds the application's *slog.Logger.
//
// Everything downstream receives the logger by injection; nothing calls
// slog's package-level functions except the last-resort paths that have no
// logger in scope (for example a JSON encode failure after headers are sent),
// which is why New also installs it as the slog default.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a text or JSON logger writing to w at the given level.
// Unknown levels fall back to info; unknown formats fall back to text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
