package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", "text", &buf)

	logger.Info("probe recorded", KeyHost, "example.com", KeySeq, 3)

	out := buf.String()
	if !strings.Contains(out, "probe recorded") {
		t.Fatalf("missing message: %q", out)
	}
	if !strings.Contains(out, "host=example.com") {
		t.Fatalf("missing host attr: %q", out)
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", "json", &buf)

	logger.Info("probe recorded", KeyOutcome, "timeout")

	out := buf.String()
	if !strings.Contains(out, `"outcome":"timeout"`) {
		t.Fatalf("missing json attr: %q", out)
	}
}

func TestNewLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("error", "text", &buf)

	logger.Info("dropped")
	logger.Error("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info leaked through error level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("error record missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Fatalf("parseLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	// Must not panic and must not write anywhere visible.
	NopLogger().Info("discarded")
}
