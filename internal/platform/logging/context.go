package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Attribute keys attached by the request middleware.
const (
	RequestIDKey     = "request_id"
	TraceIDKey       = "trace_id"
	CorrelationIDKey = "correlation_id"
)

type ctxKey struct{}

var fallback atomic.Pointer[slog.Logger]

func init() {
	fallback.Store(slog.Default())
}

// SetDefault installs logger as the process default, both here and in slog.
func SetDefault(logger *slog.Logger) {
	fallback.Store(logger)
	slog.SetDefault(logger)
}

// Default returns the logger used when a context carries none.
func Default() *slog.Logger {
	return fallback.Load()
}

// FromContext returns the request logger, or Default. A nil ctx is allowed.
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOr(ctx, Default())
}

// FromContextOr returns the logger stored in ctx, or def when there is none.
func FromContextOr(ctx context.Context, def *slog.Logger) *slog.Logger {
	if ctx == nil {
		return def
	}

	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}

	return def
}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// With derives the context logger with extra attributes.
func With(ctx context.Context, args ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(args...))
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return With(ctx, slog.String(RequestIDKey, id))
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return With(ctx, slog.String(TraceIDKey, id))
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return With(ctx, slog.String(CorrelationIDKey, id))
}
