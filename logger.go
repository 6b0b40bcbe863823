package tensorgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with tensorgo-specific context.
// This provides structured logging with consistent field names.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithStore adds the store directory to the logger.
func (l *Logger) WithStore(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("store", dir),
	}
}

// LogAllocate logs a store allocation.
func (l *Logger) LogAllocate(ctx context.Context, dir string, records, fields int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "allocation failed",
			"dir", dir,
			"records", records,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "store allocated",
			"dir", dir,
			"records", records,
			"fields", fields,
		)
	}
}

// LogPopulate logs the outcome of a population run.
func (l *Logger) LogPopulate(ctx context.Context, records, batches, workers int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "population failed",
			"records", records,
			"batches", batches,
			"workers", workers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "population completed",
			"records", records,
			"batches", batches,
			"workers", workers,
		)
	}
}

// LogPopulateProgress logs cumulative population progress.
func (l *Logger) LogPopulateProgress(ctx context.Context, written, total int) {
	l.DebugContext(ctx, "population progress",
		"written", written,
		"total", total,
	)
}

// LogSeal logs a seal operation.
func (l *Logger) LogSeal(ctx context.Context, dir string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "seal failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "store sealed",
			"dir", dir,
		)
	}
}

// LogGet logs a batched read.
func (l *Logger) LogGet(ctx context.Context, indices int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "batched read failed",
			"indices", indices,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "batched read completed",
			"indices", indices,
		)
	}
}
