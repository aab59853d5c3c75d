// Package mock provides a test double for langid.Detector.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/humint/pkg/provider/langid"
)

// Detector is a mock implementation of langid.Detector.
type Detector struct {
	mu sync.Mutex

	// Tag is returned by every successful call.
	Tag string

	// Err, if non-nil, is returned instead of Tag.
	Err error

	calls []string
}

var _ langid.Detector = (*Detector)(nil)

// DetectLanguage records text and returns Tag or Err.
func (m *Detector) DetectLanguage(_ context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Tag, nil
}

// Calls returns the texts passed to DetectLanguage, in order.
func (m *Detector) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times DetectLanguage was called.
func (m *Detector) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
