// Package mock provides test doubles for the vad package interfaces.
//
// Classifier replays a scripted sequence of decisions and records every frame
// it was asked to classify:
//
//	c := &mock.Classifier{Results: []bool{false, false, true}}
//	speech, _ := c.IsSpeech(ctx, frame, 16000)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/humint/pkg/provider/vad"
)

// IsSpeechCall records a single invocation of Classifier.IsSpeech.
type IsSpeechCall struct {
	// Frame is a copy of the bytes passed to IsSpeech.
	Frame []byte

	// SampleRate is the rate passed to IsSpeech.
	SampleRate int
}

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Results is consumed in order, one entry per call. Once exhausted,
	// Default is returned.
	Results []bool

	// Default is returned when Results is exhausted.
	Default bool

	// ErrAt, if non-nil, maps a zero-based call index to the error returned
	// by that call.
	ErrAt map[int]error

	// Err, if non-nil, is returned by every call not covered by ErrAt.
	Err error

	// Calls records every call to IsSpeech in order.
	Calls []IsSpeechCall
}

// IsSpeech records the call and returns the next scripted result.
func (c *Classifier) IsSpeech(_ context.Context, frame []byte, sampleRate int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.Calls)
	cp := make([]byte, len(frame))
	copy(cp, frame)
	c.Calls = append(c.Calls, IsSpeechCall{Frame: cp, SampleRate: sampleRate})

	if err, ok := c.ErrAt[idx]; ok {
		return false, err
	}
	if c.Err != nil {
		return false, c.Err
	}
	if idx < len(c.Results) {
		return c.Results[idx], nil
	}
	return c.Default, nil
}

// CallCount returns the number of IsSpeech calls. Thread-safe.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}

var _ vad.Classifier = (*Classifier)(nil)
