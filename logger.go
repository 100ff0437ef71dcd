package imgcache

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with imgcache-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithAddress adds the source address to the logger.
func (l *Logger) WithAddress(address string) *Logger {
	return &Logger{
		Logger: l.Logger.With("address", address),
	}
}

// WithSlot adds a slot identity to the logger.
func (l *Logger) WithSlot(id SlotID) *Logger {
	return &Logger{
		Logger: l.Logger.With("slot", uint64(id)),
	}
}

// WithKey adds a cache key to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// LogLoad logs the outcome of a load.
func (l *Logger) LogLoad(ctx context.Context, address string, source Source, err error) {
	if err != nil {
		l.WarnContext(ctx, "load failed",
			"address", address,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "load completed",
			"address", address,
			"source", source.String(),
		)
	}
}

// LogFetch logs a network fetch attempt.
func (l *Logger) LogFetch(ctx context.Context, address string, attempt int, err error) {
	if err != nil {
		l.DebugContext(ctx, "fetch attempt failed",
			"address", address,
			"attempt", attempt,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"address", address,
			"attempt", attempt,
		)
	}
}

// LogCacheIO logs a persistent cache failure. These never fail a load.
func (l *Logger) LogCacheIO(ctx context.Context, op, key string, err error) {
	l.WarnContext(ctx, "persistent cache operation failed",
		"op", op,
		"key", key,
		"error", err,
	)
}

// LogPrefetch logs a prefetch operation.
func (l *Logger) LogPrefetch(ctx context.Context, address string, err error) {
	if err != nil {
		l.WarnContext(ctx, "prefetch failed",
			"address", address,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "prefetch completed",
			"address", address,
		)
	}
}
