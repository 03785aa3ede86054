// Package logging configures the process-wide slog logger. Console output
// goes to stdout as text or JSON; when a log file is configured, a rotated
// JSON copy is fanned out alongside it.
package logging

import (
	"log/slog"
	"os"

	multi "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options control the handler stack built by Setup.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is text or json for the console handler. Empty means text.
	Format string
	// File, when set, adds a rotated JSON handler writing to this path.
	File string
}

// Setup builds the logger described by opts, installs it as the slog default,
// and returns it.
func Setup(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if opts.Format == "json" {
		console = slog.NewJSONHandler(os.Stdout, hopts)
	} else {
		console = slog.NewTextHandler(os.Stdout, hopts)
	}

	handler := console
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    64,
			MaxBackups: 32,
			MaxAge:     30,
			Compress:   true,
		}
		handler = multi.Fanout(console, slog.NewJSONHandler(rotated, hopts))
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
