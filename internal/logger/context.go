package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, or fallback when ctx carries none.
// Fields of the request logger (request_id) are kept; fallback's name is applied on top.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	l, ok := ctx.Value(ctxKey{}).(*zap.Logger)
	switch {
	case !ok || l == nil:
		if fallback == nil {
			return zap.NewNop()
		}
		return fallback
	case fallback != nil && fallback.Name() != "":
		return l.Named(fallback.Name())
	default:
		return l
	}
}
