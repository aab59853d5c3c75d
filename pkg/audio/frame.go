// Package audio holds the PCM primitives shared by the gating pipeline and the
// capture layer: fixed-duration frame segmentation, int16 ↔ float32 sample
// conversion, channel and rate conversion, and WAV encoding.
//
// All audio handled here is 16-bit signed little-endian PCM. Functions are
// pure and safe for concurrent use.
package audio

import (
	"errors"
	"fmt"
	"iter"
)

// BytesPerSample is the width of one 16-bit PCM sample.
const BytesPerSample = 2

// DefaultFrameMs is the frame duration fed to the speech classifier.
const DefaultFrameMs = 30

var (
	// ErrOddLength is returned when a PCM buffer does not contain a whole
	// number of 16-bit samples.
	ErrOddLength = errors.New("audio: odd byte length for 16-bit PCM")

	// ErrInvalidFormat is returned for non-positive sample rates or frame
	// durations.
	ErrInvalidFormat = errors.New("audio: invalid sample rate or frame duration")
)

// Rounding selects how the per-frame sample count is derived when the sample
// rate is not evenly divisible by 1000/frameMs (e.g. 44100 Hz at 30 ms).
type Rounding int

const (
	// RoundFloor truncates the fractional sample. This is the default.
	RoundFloor Rounding = iota

	// RoundNearest rounds half up to the nearest whole sample.
	RoundNearest
)

// String returns the config spelling of r.
func (r Rounding) String() string {
	switch r {
	case RoundFloor:
		return "floor"
	case RoundNearest:
		return "nearest"
	default:
		return fmt.Sprintf("Rounding(%d)", int(r))
	}
}

// FrameLen returns the byte length of one frameMs-long frame at sampleRate:
// floor(sampleRate*frameMs/1000) samples of two bytes each. It returns 0 for
// non-positive inputs.
func FrameLen(sampleRate, frameMs int) int {
	if sampleRate <= 0 || frameMs <= 0 {
		return 0
	}
	return sampleRate * frameMs / 1000 * BytesPerSample
}

// FrameLenRounded is like [FrameLen] but rounds the sample count to the
// nearest integer instead of truncating it.
func FrameLenRounded(sampleRate, frameMs int) int {
	if sampleRate <= 0 || frameMs <= 0 {
		return 0
	}
	return (sampleRate*frameMs + 500) / 1000 * BytesPerSample
}

// FrameLenWith dispatches to [FrameLen] or [FrameLenRounded].
func FrameLenWith(r Rounding, sampleRate, frameMs int) int {
	if r == RoundNearest {
		return FrameLenRounded(sampleRate, frameMs)
	}
	return FrameLen(sampleRate, frameMs)
}

// Frames yields consecutive frameLen-byte views into chunk in order. A
// trailing remainder shorter than frameLen is never yielded. The yielded
// slices alias chunk and must not be modified. A non-positive frameLen yields
// nothing.
func Frames(chunk []byte, frameLen int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if frameLen <= 0 {
			return
		}
		for start := 0; start+frameLen <= len(chunk); start += frameLen {
			if !yield(chunk[start : start+frameLen : start+frameLen]) {
				return
			}
		}
	}
}

// FrameCount returns the number of whole frames [Frames] would yield.
func FrameCount(chunkLen, frameLen int) int {
	if frameLen <= 0 || chunkLen < 0 {
		return 0
	}
	return chunkLen / frameLen
}

// Segment validates chunk as 16-bit PCM and returns its frame sequence using
// floor rounding. See [SegmentWith].
func Segment(chunk []byte, sampleRate, frameMs int) (iter.Seq[[]byte], error) {
	return SegmentWith(RoundFloor, chunk, sampleRate, frameMs)
}

// SegmentWith validates chunk and returns the sequence of frameMs-long frames.
// A chunk shorter than one frame yields an empty sequence and no error.
func SegmentWith(r Rounding, chunk []byte, sampleRate, frameMs int) (iter.Seq[[]byte], error) {
	if sampleRate <= 0 || frameMs <= 0 {
		return nil, fmt.Errorf("%w: rate=%d frame_ms=%d", ErrInvalidFormat, sampleRate, frameMs)
	}
	if len(chunk)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(chunk))
	}
	frameLen := FrameLenWith(r, sampleRate, frameMs)
	if frameLen == 0 {
		return nil, fmt.Errorf("%w: rate=%d frame_ms=%d gives empty frames", ErrInvalidFormat, sampleRate, frameMs)
	}
	return Frames(chunk, frameLen), nil
}
