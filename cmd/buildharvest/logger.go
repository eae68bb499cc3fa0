package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/buildharvest/config"
)

// initLogger configures slog to write to stdout and to a fresh
// logs/log_YYYYMMDD_HHMMSS.txt. The returned closer flushes the file.
func initLogger(cfg config.LogConfig, now time.Time) (io.Closer, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.Create(filepath.Join(cfg.Dir, logFileName(now)))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	out := io.MultiWriter(os.Stdout, f)

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	return syncCloser{f}, nil
}

func logFileName(t time.Time) string {
	return "log_" + t.Format("20060102_150405") + ".txt"
}

type syncCloser struct{ f *os.File }

func (c syncCloser) Close() error {
	if err := c.f.Sync(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}
