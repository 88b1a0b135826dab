package experience

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with experience-specific helpers so every
// component logs with the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithDir adds the experience directory field.
func (l *Logger) WithDir(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dir", dir),
	}
}

// WithLabel adds a session label field.
func (l *Logger) WithLabel(label string) *Logger {
	return &Logger{
		Logger: l.Logger.With("label", label),
	}
}

// LogDiscover logs the outcome of a directory scan.
func (l *Logger) LogDiscover(ctx context.Context, chunks, examples int, duration time.Duration, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "discovery failed",
			"error", err,
		)
	case chunks == 0:
		l.WarnContext(ctx, "no experience chunks found")
	default:
		l.InfoContext(ctx, "loaded experience data",
			"chunks", chunks,
			"examples", examples,
			"duration", duration,
		)
	}
}

// LogSelect logs a subset selection.
func (l *Logger) LogSelect(ctx context.Context, requested float64, n, available int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "subset selection failed",
			"requested", requested,
			"available", available,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "using subset",
		"examples", n,
		"available", available,
	)
}

// LogMirror logs a completed mirror run.
func (l *Logger) LogMirror(ctx context.Context, fetched, skipped int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mirror failed",
			"fetched", fetched,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "mirror completed",
		"fetched", fetched,
		"skipped", skipped,
		"bytes", bytes,
	)
}
