package middleware

import (
	"log/slog"
	"net/http"
	"orderpulse/pkg/logging"

	"go.opentelemetry.io/otel/trace"
)

// RequestLogger creates a middleware that logs requests and injects the logger.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, reqLog := logging.With(logging.WithContext(r.Context(), log),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				ctx, reqLog = logging.With(ctx, logging.TraceID(sc.TraceID().String()))
			}

			reqLog.DebugContext(ctx, "http - request - started")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
