package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/humint/internal/observe"
	"github.com/MrWong99/humint/pkg/events"
)

// Outcome is the result of processing one chunk without error.
type Outcome int

const (
	// OutcomeSkipped means the chunk held no speech.
	OutcomeSkipped Outcome = iota

	// OutcomeStored means an event was built and accepted by the sink.
	OutcomeStored
)

// String returns "skipped" or "stored".
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return observe.OutcomeSkipped
	case OutcomeStored:
		return observe.OutcomeStored
	default:
		return "unknown"
	}
}

// Pipeline assembles events and hands them to a sink.
type Pipeline struct {
	assembler *Assembler
	sink      events.Sink
	metrics   *observe.Metrics
}

// New returns a Pipeline writing to sink. metrics may be nil, in which case
// [observe.DefaultMetrics] is used.
func New(assembler *Assembler, sink events.Sink, metrics *observe.Metrics) (*Pipeline, error) {
	if assembler == nil {
		return nil, errors.New("pipeline: assembler is nil")
	}
	if sink == nil {
		return nil, errors.New("pipeline: sink is nil")
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Pipeline{assembler: assembler, sink: sink, metrics: metrics}, nil
}

// Process runs chunk through the assembler and writes the resulting event.
// A chunk without speech yields (OutcomeSkipped, nil); a failed chunk yields
// a [*StageError]. The sink is never called with a partial event, nor after
// ctx is cancelled.
func (p *Pipeline) Process(ctx context.Context, chunk Chunk, keywords []string) (Outcome, error) {
	p.metrics.ChunksInFlight.Add(ctx, 1)
	defer p.metrics.ChunksInFlight.Add(ctx, -1)

	outcome, err := p.process(ctx, chunk, keywords)
	switch {
	case err != nil:
		p.metrics.RecordChunk(ctx, observe.OutcomeError)
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.metrics.RecordStageError(ctx, string(StageOf(err)))
		}
	default:
		p.metrics.RecordChunk(ctx, outcome.String())
	}
	return outcome, err
}

func (p *Pipeline) process(ctx context.Context, chunk Chunk, keywords []string) (Outcome, error) {
	ev, err := p.assembler.Assemble(ctx, chunk, keywords)
	if err != nil {
		return OutcomeSkipped, err
	}
	if ev == nil {
		return OutcomeSkipped, nil
	}

	if err := ctx.Err(); err != nil {
		return OutcomeSkipped, stageErr(StageSink, chunk.ID, err)
	}
	start := time.Now()
	err = p.sink.Write(ctx, *ev)
	p.metrics.ObserveStage(ctx, string(StageSink), start, err)
	if err != nil {
		return OutcomeSkipped, stageErr(StageSink, chunk.ID, err)
	}
	return OutcomeStored, nil
}
