// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A Transcriber turns one complete, already gated audio chunk into text. The
// pipeline never streams partial audio to it: each call carries the full
// chunk as float32 samples normalised to [-1, 1] at the transcriber's
// configured sample rate (16 kHz mono for every whisper-family backend).
//
// Implementations must be safe for concurrent use. They must not retry
// internally; a failed call surfaces as an error so the pipeline can report it
// against the chunk.
package stt

import (
	"context"
	"errors"
)

// DefaultSampleRate is the rate whisper-family models are trained on.
const DefaultSampleRate = 16000

// ErrEmptyAudio is returned when Transcribe is called with no samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Transcriber converts a mono float waveform to text.
type Transcriber interface {
	// Transcribe returns the recognised text for samples. An empty string
	// with a nil error means the engine heard nothing it could transcribe.
	// Leading and trailing whitespace may be present; callers trim it.
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// TranscriberFunc adapts an ordinary function to the Transcriber interface.
type TranscriberFunc func(ctx context.Context, samples []float32) (string, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return f(ctx, samples)
}
