package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/humint/pkg/events"
	"github.com/MrWong99/humint/pkg/provider/stt"
)

// Transcriber guards an [stt.Transcriber] with a circuit breaker.
type Transcriber struct {
	inner   stt.Transcriber
	breaker *CircuitBreaker
}

var _ stt.Transcriber = (*Transcriber)(nil)

// NewTranscriber wraps inner. cfg.Name defaults to "stt".
func NewTranscriber(inner stt.Transcriber, cfg Config) *Transcriber {
	if cfg.Name == "" {
		cfg.Name = "stt"
	}
	return &Transcriber{inner: inner, breaker: New(cfg)}
}

// Breaker exposes the underlying breaker for health reporting.
func (t *Transcriber) Breaker() *CircuitBreaker { return t.breaker }

// Transcribe forwards to the wrapped transcriber unless the breaker is open.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	var text string
	err := t.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = t.inner.Transcribe(ctx, samples)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.breaker.Name(), err)
	}
	return text, nil
}

// Sink guards an [events.Sink] with a circuit breaker. Ping bypasses the
// breaker so readiness reflects the backend itself.
type Sink struct {
	inner   events.Sink
	breaker *CircuitBreaker
}

var (
	_ events.Sink   = (*Sink)(nil)
	_ events.Pinger = (*Sink)(nil)
)

// NewSink wraps inner. cfg.Name defaults to "sink".
func NewSink(inner events.Sink, cfg Config) *Sink {
	if cfg.Name == "" {
		cfg.Name = "sink"
	}
	return &Sink{inner: inner, breaker: New(cfg)}
}

// Breaker exposes the underlying breaker for health reporting.
func (s *Sink) Breaker() *CircuitBreaker { return s.breaker }

// Write forwards ev unless the breaker is open.
func (s *Sink) Write(ctx context.Context, ev events.SpeechEvent) error {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.inner.Write(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", s.breaker.Name(), err)
	}
	return nil
}

// Ping pings the wrapped sink if it supports it.
func (s *Sink) Ping(ctx context.Context) error {
	if p, ok := s.inner.(events.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
