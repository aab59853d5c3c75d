package observe

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the humint tracer.
const tracerName = "github.com/MrWong99/humint"

// Tracer returns the tracer of the globally registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. The caller must call span.End.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// TraceID returns the hex trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with args attached, plus trace_id and
// span_id when ctx carries a span.
func Logger(ctx context.Context, args ...any) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		args = append(args,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if len(args) == 0 {
		return slog.Default()
	}
	return slog.Default().With(args...)
}

// RecordError marks span as failed with err. A nil err is a no-op.
// Cancellation is recorded as an attribute only: a chunk abandoned at
// shutdown did not fail.
func RecordError(span trace.Span, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled):
		span.SetAttributes(attribute.Bool("cancelled", true))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
