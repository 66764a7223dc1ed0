// Package logging installs the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/marcus/fueltrack/internal/syncconfig"
)

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// New builds a logger writing to w.
func New(w io.Writer, cfg syncconfig.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs the default logger. With a log file configured, output
// goes through a rotating writer; otherwise to stderr. The returned closer
// flushes the file and is safe to call when there is none.
func Setup(cfg syncconfig.LogConfig) io.Closer {
	if cfg.File == "" {
		slog.SetDefault(New(os.Stderr, cfg))
		return io.NopCloser(nil)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		slog.SetDefault(New(os.Stderr, cfg))
		slog.Warn("log dir unavailable, logging to stderr", "file", cfg.File, "err", err)
		return io.NopCloser(nil)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	slog.SetDefault(New(rotator, cfg))
	return rotator
}
