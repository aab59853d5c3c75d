// Package mock provides a test double for stt.Transcriber.
//
// Example:
//
//	tr := &mock.Transcriber{Text: "hello world"}
//	text, _ := tr.Transcribe(ctx, samples)
//	n := tr.CallCount()
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/humint/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the waveform passed to Transcribe.
	Samples []float32
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned by every successful call.
	Text string

	// Err, if non-nil, is returned instead of Text.
	Err error

	// Hook, if set, runs before the result is returned. It can block to
	// simulate a slow engine or observe ctx.
	Hook func(ctx context.Context)

	calls []TranscribeCall
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns Text or Err.
func (m *Transcriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, TranscribeCall{Samples: slices.Clone(samples)})
	hook := m.Hook
	text, err := m.Text, m.Err
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Calls returns a copy of all recorded calls.
func (m *Transcriber) Calls() []TranscribeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times Transcribe was called.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls.
func (m *Transcriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
