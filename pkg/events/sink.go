package events

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by sinks that have been closed.
var ErrClosed = errors.New("events: sink closed")

// Sink receives finished events. Write is called once per event; the sink
// owns persistence from then on. Implementations must be safe for concurrent
// use.
type Sink interface {
	Write(ctx context.Context, ev SpeechEvent) error
}

// Store is a Sink that can also read back what it stored, newest first.
type Store interface {
	Sink

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// ByKeyword returns up to limit events whose keyword list contains
	// keyword exactly, newest first.
	ByKeyword(ctx context.Context, keyword string, limit int) ([]Record, error)
}

// Pinger is implemented by sinks backed by a remote service that can report
// connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(ctx context.Context, ev SpeechEvent) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, ev SpeechEvent) error {
	return f(ctx, ev)
}

// NamedSink pairs a sink with the name it was configured under, for error
// messages.
type NamedSink struct {
	Name string
	Sink Sink
}

// MultiSink fans each event out to every sink in order. Every sink is tried
// even when an earlier one fails; the returned error joins all failures.
type MultiSink []NamedSink

var _ Sink = MultiSink(nil)

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, ev SpeechEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Sink.Write(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("sink %q: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Ping pings every sink that implements Pinger.
func (m MultiSink) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if p, ok := s.Sink.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("sink %q: %w", s.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Store returns the first sink that implements Store, or nil.
func (m MultiSink) Store() Store {
	for _, s := range m {
		if st, ok := s.Sink.(Store); ok {
			return st
		}
	}
	return nil
}
