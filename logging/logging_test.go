package logging

import (
	"log/slog"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "bogus", want: slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetup(t *testing.T) {
	log := Setup(Options{Level: "debug", Format: "json"})
	if log == nil {
		t.Fatal("Setup returned nil logger")
	}
	if slog.Default() != log {
		t.Fatal("Setup must install the logger as default")
	}
	if !log.Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("debug level should be enabled")
	}
}

func TestSetupWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log := Setup(Options{Level: "warn", File: path})
	if log.Enabled(t.Context(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	log.Warn("rotated sink smoke test")
}
