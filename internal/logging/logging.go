// Package logging provides structured logging for paraping. The TUI owns the
// terminal, so loggers default to a caller-provided writer (a file or
// io.Discard), never the screen.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger creates a structured logger writing to w.
// Supported levels: debug, info, warn, error. Supported formats: text, json.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Common attribute keys for consistent logging.
const (
	KeyHost      = "host"
	KeySeq       = "seq"
	KeyOutcome   = "outcome"
	KeyRTT       = "rtt_ms"
	KeyTTL       = "ttl"
	KeyError     = "error"
	KeyComponent = "component"
	KeyAddress   = "address"
)
