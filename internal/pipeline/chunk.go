package pipeline

import "github.com/MrWong99/humint/pkg/audio"

// Chunk is one unit of captured audio: mono 16-bit little-endian PCM at
// SampleRate. The pipeline never modifies PCM.
type Chunk struct {
	// ID identifies the chunk in logs and errors. May be empty.
	ID string

	PCM        []byte
	SampleRate int
}

// DurationMs returns the chunk's length in milliseconds, rounded down.
func (c Chunk) DurationMs() int {
	if c.SampleRate <= 0 {
		return 0
	}
	return len(c.PCM) / audio.BytesPerSample * 1000 / c.SampleRate
}
