package logging

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithContext returns a copy of ctx carrying log.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger carried by ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// With narrows the logger in ctx with args and stores the result back,
// so callees log with the same attrs.
func With(ctx context.Context, args ...any) (context.Context, *slog.Logger) {
	log := FromContext(ctx).With(args...)
	return WithContext(ctx, log), log
}
