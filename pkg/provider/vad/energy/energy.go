// Package energy provides a dependency-free vad.Classifier that marks a frame
// as speech when its RMS energy reaches a fixed threshold.
//
// It is far less selective than WebRTC VAD but needs no CGO, which makes it
// the fallback for builds and hosts without the native library.
package energy

import (
	"context"
	"fmt"

	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/provider/vad"
)

// DefaultThreshold is the RMS level (in int16 sample units) at or above which
// a frame counts as speech.
const DefaultThreshold = 300.0

// Classifier implements vad.Classifier using RMS energy. The zero value is
// not usable; construct with [New].
type Classifier struct {
	threshold float64
}

var _ vad.Classifier = (*Classifier)(nil)

// New returns a Classifier with the given threshold. A non-positive threshold
// selects [DefaultThreshold].
func New(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{threshold: threshold}
}

// Threshold returns the configured RMS threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// IsSpeech implements vad.Classifier. Frames must hold whole 16-bit samples.
func (c *Classifier) IsSpeech(ctx context.Context, frame []byte, sampleRate int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if sampleRate <= 0 || len(frame) == 0 || len(frame)%audio.BytesPerSample != 0 {
		return false, fmt.Errorf("energy vad: %w: rate=%d frame_bytes=%d", vad.ErrUnsupportedFormat, sampleRate, len(frame))
	}
	return audio.RMS(frame) >= c.threshold, nil
}
