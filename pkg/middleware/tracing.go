package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// RouteFunc resolves the registered pattern serving r, "" when none does.
type RouteFunc func(r *http.Request) string

// statusRecorder remembers what the handler sent. A hijacked connection
// (websocket upgrade) is reported as 101.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	written  int
	hijacked bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacker not supported")
	}
	conn, buf, err := h.Hijack()
	if err == nil {
		rw.hijacked = true
		rw.status = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

// TracerMiddleware opens a server span per request, continuing any trace
// propagated in the headers. Spans are named after the matched route so
// that path parameters do not explode span cardinality.
func TracerMiddleware(app string, route RouteFunc) func(http.Handler) http.Handler {
	tracer := otel.Tracer(app)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			pattern := ""
			if route != nil {
				pattern = route(r)
			}
			name := pattern
			if name == "" {
				name = r.Method + " unmatched"
			}
			attrs := []attribute.KeyValue{
				semconv.ServiceName(app),
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				semconv.UserAgentOriginal(r.UserAgent()),
			}
			if pattern != "" {
				attrs = append(attrs, semconv.HTTPRoute(pattern))
			}
			ctx, span := tracer.Start(ctx, name,
				trace.WithAttributes(attrs...),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetAttributes(
				semconv.HTTPResponseStatusCode(rec.status),
				semconv.HTTPResponseBodySize(rec.written),
				attribute.Bool("http.upgraded", rec.hijacked),
			)
			// Client errors are the caller's fault, not the server's.
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}
