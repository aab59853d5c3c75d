// Package observe provides the observability primitives shared by humint:
// OpenTelemetry metrics, tracing, trace-aware structured logging, and the
// HTTP middleware for the ops server.
//
// Instruments live in a [Metrics] value built from any
// [metric.MeterProvider]. [Init] bridges the global provider to Prometheus.
// Tests build their own via [NewMetrics] and a ManualReader so they never
// share state.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/humint"

// Chunk outcomes, the "outcome" attribute of humint.chunks.
const (
	OutcomeStored  = "stored"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Stage result values, the "result" attribute of humint.stage.duration.
const (
	resultOK        = "ok"
	resultError     = "error"
	resultCancelled = "cancelled"
)

// Metrics holds the instruments recorded by the pipeline and the ops
// server. Safe for concurrent use.
type Metrics struct {
	// StageDuration is the latency of one pipeline stage, with attributes
	// "stage" and "result".
	StageDuration metric.Float64Histogram

	// Chunks counts finished chunks by "outcome".
	Chunks metric.Int64Counter

	// StageErrors counts failed chunks by "stage". Cancellation is not
	// counted.
	StageErrors metric.Int64Counter

	// FramesClassified counts frames handed to the speech classifier.
	FramesClassified metric.Int64Counter

	// ChunksInFlight is the number of chunks inside the pipeline.
	ChunksInFlight metric.Int64UpDownCounter

	// HTTPRequestDuration is ops server latency by "route" and "status".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets run from a sub-millisecond gate decision to a slow CPU
// transcription, in seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var met Metrics
	var errs []error
	add := func(err error) { errs = append(errs, err) }

	var err error
	met.StageDuration, err = m.Float64Histogram("humint.stage.duration",
		metric.WithDescription("Latency of a pipeline stage for one chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	add(err)
	met.Chunks, err = m.Int64Counter("humint.chunks",
		metric.WithDescription("Audio chunks processed, by outcome."))
	add(err)
	met.StageErrors, err = m.Int64Counter("humint.stage.errors",
		metric.WithDescription("Chunks dropped, by failing stage."))
	add(err)
	met.FramesClassified, err = m.Int64Counter("humint.frames.classified",
		metric.WithDescription("Frames passed to the speech classifier."))
	add(err)
	met.ChunksInFlight, err = m.Int64UpDownCounter("humint.chunks.inflight",
		metric.WithDescription("Chunks currently being processed."))
	add(err)
	met.HTTPRequestDuration, err = m.Float64Histogram("humint.http.request.duration",
		metric.WithDescription("Ops server request latency by route and status."),
		metric.WithUnit("s"))
	add(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] on [otel.GetMeterProvider],
// created on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordChunk increments the chunk counter for outcome.
func (m *Metrics) RecordChunk(ctx context.Context, outcome string) {
	m.Chunks.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordStageError increments the stage error counter.
func (m *Metrics) RecordStageError(ctx context.Context, stage string) {
	m.StageErrors.Add(ctx, 1, metric.WithAttributes(Attr("stage", stage)))
}

// ObserveStage records the time since start for stage. err decides the
// "result" attribute.
func (m *Metrics) ObserveStage(ctx context.Context, stage string, start time.Time, err error) {
	result := resultOK
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = resultCancelled
	case err != nil:
		result = resultError
	}
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(Attr("stage", stage), Attr("result", result)))
}
