// Package mock provides a test double for sentiment.Scorer.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/humint/pkg/provider/sentiment"
)

// Scorer is a mock implementation of sentiment.Scorer.
type Scorer struct {
	mu sync.Mutex

	// Value is returned by every successful call.
	Value float64

	// Err, if non-nil, is returned instead of Value.
	Err error

	// Hook, if set, runs on every call before the result is returned.
	Hook func(ctx context.Context)

	calls []string
}

var _ sentiment.Scorer = (*Scorer)(nil)

// Score records text and returns Value or Err.
func (m *Scorer) Score(ctx context.Context, text string) (float64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	hook := m.Hook
	m.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Value, nil
}

// Calls returns the texts passed to Score, in order.
func (m *Scorer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times Score was called.
func (m *Scorer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
