// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level is shared by every handler built here so the verbosity can be
// adjusted at runtime, for example after a config reload.
var level = new(slog.LevelVar)

// Options controls handler construction.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Unknown
	// values fall back to info.
	Level string
	// Format is "text" or "json". Unknown values fall back to text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a logger and installs it as the slog default.
func New(opts Options) *slog.Logger {
	SetLevel(opts.Level)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		h = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// SetLevel updates the shared level var. Safe to call at any time.
func SetLevel(s string) {
	switch strings.ToLower(s) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// Discard returns a logger that drops everything. For tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
