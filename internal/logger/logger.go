// Package logger builds the daemon's own diagnostic logger. The supervised
// command's output never goes through here; it flows through the capture
// sink. This log records lifecycle events and sink errors, rotated by
// lumberjack.
package logger

import (
	"io"
	"log/slog"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 2
	DefaultMaxAgeDays = 7
)

// Config describes the diagnostic log destination and rotation policy.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Path       string // log file path; empty disables file output
	Level      string // debug, info, warn, error (default info)
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a structured logger writing to the configured rotating file.
// With an empty path it returns a logger that discards everything, so callers
// never need a nil check.
func New(c Config) *slog.Logger {
	if c.Path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := &lj.Logger{
		Filename:   c.Path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
	}
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
