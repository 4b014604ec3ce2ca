package quantgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with quantgo-specific context.
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

// WithWorker adds the worker identifier field to the logger.
func (l *Logger) WithWorker(worker int) *Logger {
	return &Logger{
		Logger: l.Logger.With("worker", worker),
	}
}

// WithColumns adds a column-count field to the logger.
func (l *Logger) WithColumns(columns int) *Logger {
	return &Logger{
		Logger: l.Logger.With("columns", columns),
	}
}

// WithEntries adds an entry-count field to the logger.
func (l *Logger) WithEntries(entries int) *Logger {
	return &Logger{
		Logger: l.Logger.With("entries", entries),
	}
}

// LogPush logs an ingestion operation.
func (l *Logger) LogPush(ctx context.Context, samples, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "push failed",
			"samples", samples,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "push completed",
			"samples", samples,
			"entries", entries,
		)
	}
}

// LogPrune logs a prune operation.
func (l *Logger) LogPrune(ctx context.Context, to, before, after int) {
	l.DebugContext(ctx, "prune completed",
		"to", to,
		"before", before,
		"after", after,
	)
}

// LogMerge logs a merge operation.
func (l *Logger) LogMerge(ctx context.Context, otherEntries, mergedEntries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed",
			"other_entries", otherEntries,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "merge completed",
			"other_entries", otherEntries,
			"merged_entries", mergedEntries,
		)
	}
}

// LogUnique logs a deduplication operation.
func (l *Logger) LogUnique(ctx context.Context, before, after int) {
	l.DebugContext(ctx, "unique completed",
		"before", before,
		"after", after,
	)
}

// LogAllReduce logs a distributed merge round.
func (l *Logger) LogAllReduce(ctx context.Context, workers, payloadBytes int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "allreduce failed",
			"workers", workers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "allreduce completed",
			"workers", workers,
			"payload_bytes", payloadBytes,
			"elapsed", elapsed,
		)
	}
}

// LogMakeCuts logs cut emission.
func (l *Logger) LogMakeCuts(ctx context.Context, columns, totalBins int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "make cuts failed",
			"columns", columns,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "cuts emitted",
			"columns", columns,
			"total_bins", totalBins,
		)
	}
}
