package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
)

// ConfigureLogger sets the process-wide default slog logger from a
// Config's LogLevel/LogFile, exactly as
// ijakenorton-Roundtable/internal/utils.ConfigureDefaultLogger does: a
// JSON handler to a file when LogFile is set, otherwise a text handler to
// stderr (stdout in the original; stderr here so stdout stays free for
// any future machine-readable output). Returns the opened *os.File, if
// any, so main can defer closing it.
//
// Realtime I/O callbacks never log directly — helperengine's post onto
// its bounded event channel, which a single background goroutine drains
// through this logger, and pluginengine's report nothing.
func ConfigureLogger(cfg Config) (*os.File, error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "none":
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		return nil, errors.New("config: unexpected log level " + cfg.LogLevel)
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
		return nil, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, opts)))
	return f, nil
}
