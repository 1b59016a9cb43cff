package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hyperengineering/frontdesk/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. Device installs run unattended, so
// with log.file set output goes to a size-rotated file instead of stderr.
func newLogger(c config.LogConfig, stderr io.Writer) (*slog.Logger, error) {
	out := stderr
	if c.File != "" {
		out = &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		}
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(c.Level)}
	switch c.Format {
	case "text":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
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

func envOr(key string) string {
	return os.Getenv(key)
}
