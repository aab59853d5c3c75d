// Package mock provides a recording test double for events.Sink.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/humint/pkg/events"
)

// Sink is a mock implementation of events.Sink that records every event.
type Sink struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Write. The event is still
	// recorded as a call.
	Err error

	events []events.SpeechEvent
}

var _ events.Sink = (*Sink)(nil)

// Write records a deep copy of ev and returns Err.
func (m *Sink) Write(_ context.Context, ev events.SpeechEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev.Clone())
	return m.Err
}

// Events returns the recorded events in write order.
func (m *Sink) Events() []events.SpeechEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.SpeechEvent, len(m.events))
	copy(out, m.events)
	return out
}

// CallCount returns how many times Write was called.
func (m *Sink) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Reset clears recorded events.
func (m *Sink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
