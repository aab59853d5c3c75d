package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/humint/internal/observe"
	"github.com/MrWong99/humint/internal/pipeline"
	eventsmock "github.com/MrWong99/humint/pkg/events/mock"
	langidmock "github.com/MrWong99/humint/pkg/provider/langid/mock"
	sentimentmock "github.com/MrWong99/humint/pkg/provider/sentiment/mock"
	sttmock "github.com/MrWong99/humint/pkg/provider/stt/mock"
	vadmock "github.com/MrWong99/humint/pkg/provider/vad/mock"
)

type pipelineFixture struct {
	vad    *vadmock.Classifier
	stt    *sttmock.Transcriber
	sink   *eventsmock.Sink
	reader *sdkmetric.ManualReader
	p      *pipeline.Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		vad:    &vadmock.Classifier{Default: true},
		stt:    &sttmock.Transcriber{Text: "Security alert raised"},
		sink:   &eventsmock.Sink{},
		reader: sdkmetric.NewManualReader(),
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(f.reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	a, err := pipeline.NewAssembler(pipeline.Models{
		Classifier:  f.vad,
		Transcriber: f.stt,
		Detector:    &langidmock.Detector{Tag: "en"},
		Scorer:      &sentimentmock.Scorer{Value: 0.5},
	}, pipeline.WithMetrics(m))
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	f.p, err = pipeline.New(a, f.sink, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// counter returns the value of a sum metric for the data point carrying attr.
func (f *pipelineFixture) counter(t *testing.T, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := f.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := pipeline.New(nil, &eventsmock.Sink{}, nil); err == nil {
		t.Error("expected error for nil assembler")
	}
	a, err := pipeline.NewAssembler(pipeline.Models{
		Classifier:  &vadmock.Classifier{},
		Transcriber: &sttmock.Transcriber{},
		Detector:    &langidmock.Detector{},
		Scorer:      &sentimentmock.Scorer{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.New(a, nil, nil); err == nil {
		t.Error("expected error for nil sink")
	}
}

func TestProcess_Stored(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t)

	out, err := f.p.Process(context.Background(), speechChunk(2), []string{"alert", "breach"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out != pipeline.OutcomeStored {
		t.Errorf("outcome = %v; want stored", out)
	}
	evs := f.sink.Events()
	if len(evs) != 1 {
		t.Fatalf("sink got %d events; want 1", len(evs))
	}
	if evs[0].Transcript != "Security alert raised" || evs[0].KeywordsString() != "alert" {
		t.Errorf("event = %+v", evs[0])
	}
	if got := f.counter(t, "humint.chunks", observe.Attr("outcome", observe.OutcomeStored)); got != 1 {
		t.Errorf("stored chunks = %d; want 1", got)
	}
}

func TestProcess_SkippedNeverWrites(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t)
	f.vad.Default = false

	out, err := f.p.Process(context.Background(), speechChunk(3), []string{"alert"})
	if err != nil || out != pipeline.OutcomeSkipped {
		t.Fatalf("Process = %v, %v; want skipped, nil", out, err)
	}
	if f.sink.CallCount() != 0 || f.stt.CallCount() != 0 {
		t.Error("silent chunk reached transcription or the sink")
	}
	if got := f.counter(t, "humint.chunks", observe.Attr("outcome", observe.OutcomeSkipped)); got != 1 {
		t.Errorf("skipped chunks = %d; want 1", got)
	}
}

func TestProcess_FailureNeverWrites(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t)
	f.stt.Err = errors.New("engine down")

	_, err := f.p.Process(context.Background(), speechChunk(1), nil)
	if !errors.Is(err, pipeline.ErrTranscription) {
		t.Fatalf("err = %v; want ErrTranscription", err)
	}
	if f.sink.CallCount() != 0 {
		t.Error("sink called after a failed stage")
	}
	if got := f.counter(t, "humint.stage.errors", observe.Attr("stage", "transcribe")); got != 1 {
		t.Errorf("transcribe errors = %d; want 1", got)
	}
	if got := f.counter(t, "humint.chunks", observe.Attr("outcome", observe.OutcomeError)); got != 1 {
		t.Errorf("error chunks = %d; want 1", got)
	}
}

func TestProcess_SinkError(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t)
	disk := errors.New("disk full")
	f.sink.Err = disk

	out, err := f.p.Process(context.Background(), speechChunk(1), nil)
	if out != pipeline.OutcomeSkipped {
		t.Errorf("outcome = %v; want skipped on error", out)
	}
	if !errors.Is(err, pipeline.ErrSink) || !errors.Is(err, disk) {
		t.Fatalf("err = %v; want ErrSink wrapping the cause", err)
	}
	if pipeline.StageOf(err) != pipeline.StageSink {
		t.Errorf("stage = %q; want sink", pipeline.StageOf(err))
	}
	if f.sink.CallCount() != 1 {
		t.Errorf("sink calls = %d; want 1 (no retry)", f.sink.CallCount())
	}
}

func TestProcess_CancelledBeforeSink(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.stt.Hook = func(context.Context) { cancel() }

	_, err := f.p.Process(ctx, speechChunk(1), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if f.sink.CallCount() != 0 {
		t.Error("sink written after cancellation")
	}
	if got := f.counter(t, "humint.stage.errors", observe.Attr("stage", "language")); got != 0 {
		t.Errorf("cancellation counted as stage error: %d", got)
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	if pipeline.OutcomeStored.String() != "stored" || pipeline.OutcomeSkipped.String() != "skipped" {
		t.Error("unexpected outcome names")
	}
	if pipeline.Outcome(42).String() != "unknown" {
		t.Error("unknown outcome should stringify as unknown")
	}
}
