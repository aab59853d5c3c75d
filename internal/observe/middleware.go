package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests that no mux pattern matched, so probes for
// random paths cannot grow the metric's label set.
const unmatchedRoute = "unmatched"

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware wraps the ops mux. Each request gets a server span continuing
// any W3C traceparent, an X-Trace-ID response header, a duration sample
// labelled with the matched route pattern, and a log line: debug for
// successful probes and scrapes, warn for 4xx/5xx.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "ops "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if id := TraceID(ctx); id != "" {
				w.Header().Set("X-Trace-ID", id)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			// ServeMux records the matched pattern on the request it is given.
			r = r.WithContext(ctx)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			span.SetName("ops " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(rec.status),
			)

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("route", route),
					attribute.Int("status", rec.status),
				),
			)

			level := slog.LevelDebug
			if rec.status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			Logger(ctx).LogAttrs(ctx, level, "ops request",
				slog.String("route", route),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("elapsed", elapsed),
			)
		})
	}
}
