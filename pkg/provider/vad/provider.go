// Package vad defines the Classifier interface for frame-level speech
// detection backends.
//
// A Classifier answers one question: does this fixed-length frame of 16-bit
// little-endian PCM contain speech? It carries no per-stream state, so a
// single Classifier is shared by every chunk the pipeline processes
// concurrently. Backends whose native handles are not goroutine-safe (such as
// WebRTC VAD instances) must pool or lock them internally.
package vad

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat is returned when a backend cannot classify frames at
// the given sample rate or frame length.
var ErrUnsupportedFormat = errors.New("vad: unsupported sample rate or frame length")

// Classifier is a binary speech/non-speech frame classifier.
//
// Implementations must be safe for concurrent use.
type Classifier interface {
	// IsSpeech reports whether frame contains speech. frame is raw PCM at
	// sampleRate; its length is chosen by the caller and is constant for a
	// given chunk. The classifier must not retain or modify frame.
	IsSpeech(ctx context.Context, frame []byte, sampleRate int) (bool, error)
}

// ClassifierFunc adapts an ordinary function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, frame []byte, sampleRate int) (bool, error)

// IsSpeech calls f.
func (f ClassifierFunc) IsSpeech(ctx context.Context, frame []byte, sampleRate int) (bool, error) {
	return f(ctx, frame, sampleRate)
}
