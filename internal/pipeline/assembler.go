package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/humint/internal/observe"
	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/events"
	"github.com/MrWong99/humint/pkg/provider/langid"
	"github.com/MrWong99/humint/pkg/provider/sentiment"
	"github.com/MrWong99/humint/pkg/provider/stt"
	"github.com/MrWong99/humint/pkg/provider/vad"
)

// Models holds the long-lived model handles shared by every chunk. They are
// built once at startup; the pipeline only calls them and never mutates or
// closes them.
type Models struct {
	Classifier  vad.Classifier
	Transcriber stt.Transcriber
	Detector    langid.Detector
	Scorer      sentiment.Scorer
}

func (m Models) validate() error {
	var errs []error
	if m.Classifier == nil {
		errs = append(errs, errors.New("classifier is nil"))
	}
	if m.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is nil"))
	}
	if m.Detector == nil {
		errs = append(errs, errors.New("language detector is nil"))
	}
	if m.Scorer == nil {
		errs = append(errs, errors.New("sentiment scorer is nil"))
	}
	return errors.Join(errs...)
}

// Option is a functional option for [NewAssembler].
type Option func(*Assembler)

// WithFrameMs sets the classifier frame duration. Default: 30 ms.
func WithFrameMs(ms int) Option {
	return func(a *Assembler) { a.frameMs = ms }
}

// WithRounding selects how the per-frame sample count is derived for rates
// not divisible by 1000/frameMs. Default: [audio.RoundFloor].
func WithRounding(r audio.Rounding) Option {
	return func(a *Assembler) { a.rounding = r }
}

// WithKeywordMatcher replaces plain substring matching.
func WithKeywordMatcher(m *KeywordMatcher) Option {
	return func(a *Assembler) { a.matcher = m }
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// Assembler gates chunks and builds speech events from the ones that pass.
type Assembler struct {
	models   Models
	frameMs  int
	rounding audio.Rounding
	matcher  *KeywordMatcher
	now      func() time.Time
	metrics  *observe.Metrics
}

// NewAssembler returns an Assembler using models. Every model must be set.
func NewAssembler(models Models, opts ...Option) (*Assembler, error) {
	if err := models.validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	a := &Assembler{
		models:   models,
		frameMs:  audio.DefaultFrameMs,
		rounding: audio.RoundFloor,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.frameMs <= 0 {
		return nil, fmt.Errorf("pipeline: invalid frame duration %d ms", a.frameMs)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a, nil
}

// Assemble runs the gate over chunk and, if it contains speech, builds its
// event. A chunk without speech returns (nil, nil). Any failure returns a
// [*StageError] and no event. keywords is read but not retained.
func (a *Assembler) Assemble(ctx context.Context, chunk Chunk, keywords []string) (*events.SpeechEvent, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.assemble",
		trace.WithAttributes(
			attribute.String("chunk_id", chunk.ID),
			attribute.Int("pcm_bytes", len(chunk.PCM)),
			attribute.Int("sample_rate", chunk.SampleRate),
		),
	)
	defer span.End()

	ev, err := a.assemble(ctx, chunk, keywords)
	if err != nil {
		observe.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("speech", ev != nil))
	return ev, nil
}

func (a *Assembler) assemble(ctx context.Context, chunk Chunk, keywords []string) (*events.SpeechEvent, error) {
	// SEGMENT + GATE
	if err := a.enter(ctx, StageSegment, chunk.ID); err != nil {
		return nil, err
	}
	frames, err := audio.SegmentWith(a.rounding, chunk.PCM, chunk.SampleRate, a.frameMs)
	if err != nil {
		return nil, stageErr(StageSegment, chunk.ID, err)
	}

	start := time.Now()
	gate, err := HasSpeech(ctx, frames, chunk.SampleRate, a.models.Classifier)
	a.metrics.ObserveStage(ctx, string(StageGate), start, err)
	a.metrics.FramesClassified.Add(ctx, int64(gate.Evaluated))
	if err != nil {
		return nil, stageErr(StageGate, chunk.ID, err)
	}
	if !gate.Speech {
		return nil, nil
	}

	// DECODE + TRANSCRIBE
	if err := a.enter(ctx, StageTranscribe, chunk.ID); err != nil {
		return nil, err
	}
	samples := audio.DecodePCM16(chunk.PCM)

	start = time.Now()
	text, err := a.models.Transcriber.Transcribe(ctx, samples)
	a.metrics.ObserveStage(ctx, string(StageTranscribe), start, err)
	if err != nil {
		return nil, stageErr(StageTranscribe, chunk.ID, err)
	}
	transcript := strings.TrimSpace(text)

	// LANGUAGE
	if err := a.enter(ctx, StageLanguage, chunk.ID); err != nil {
		return nil, err
	}
	var language string
	if transcript != "" {
		start = time.Now()
		language, err = a.models.Detector.DetectLanguage(ctx, transcript)
		a.metrics.ObserveStage(ctx, string(StageLanguage), start, err)
		if err != nil {
			return nil, stageErr(StageLanguage, chunk.ID, err)
		}
	}

	// KEYWORDS
	matched := a.matcher.Match(transcript, keywords)

	// SENTIMENT
	if err := a.enter(ctx, StageSentiment, chunk.ID); err != nil {
		return nil, err
	}
	start = time.Now()
	score, err := a.models.Scorer.Score(ctx, transcript)
	a.metrics.ObserveStage(ctx, string(StageSentiment), start, err)
	if err != nil {
		return nil, stageErr(StageSentiment, chunk.ID, err)
	}
	if math.IsNaN(score) || score < -1 || score > 1 {
		return nil, stageErr(StageSentiment, chunk.ID, fmt.Errorf("score %v outside [-1, 1]", score))
	}

	// STAMP + BUILD
	if err := a.enter(ctx, StageStamp, chunk.ID); err != nil {
		return nil, err
	}
	return &events.SpeechEvent{
		Timestamp:  a.now().UTC(),
		Transcript: transcript,
		Language:   language,
		Keywords:   matched,
		Sentiment:  score,
	}, nil
}

// enter checks ctx before a step starts.
func (a *Assembler) enter(ctx context.Context, stage Stage, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return stageErr(stage, chunkID, err)
	}
	return nil
}
