package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// DecodePCM16 converts 16-bit signed little-endian PCM to float32 samples
// normalised to [-1.0, 1.0] by dividing by 32768. A trailing odd byte is
// ignored.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// EncodePCM16 is the inverse of [DecodePCM16]. Samples outside [-1, 1] are
// clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// RMS returns the root-mean-square energy of a 16-bit PCM buffer in sample
// units (0–32767). Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Converter brings captured PCM into the pipeline's target format. It logs a
// warning on the first mismatch. Create one per stream; it is not meant to be
// shared across goroutines.
type Converter struct {
	Target         Format
	warnedMismatch sync.Once
}

// Convert returns pcm in the target format. Rate conversion runs first, then
// channel conversion. When src already matches the target pcm is returned
// unchanged. Odd-length input is truncated to whole samples.
func (c *Converter) Convert(pcm []byte, src Format) []byte {
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	if src == c.Target {
		return pcm
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", src.String(),
			"to", c.Target.String(),
		)
	})

	if src.SampleRate != c.Target.SampleRate {
		if src.Channels == 2 {
			pcm = ResampleStereo16(pcm, src.SampleRate, c.Target.SampleRate)
		} else {
			pcm = ResampleMono16(pcm, src.SampleRate, c.Target.SampleRate)
		}
	}
	if src.Channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
	}
	return pcm
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		r := int32(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16((l+r)/2)))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. Returns pcm unchanged when the rates match or are
// invalid.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, srcRate, dstRate, 1)
}

// ResampleStereo16 resamples interleaved 16-bit stereo PCM from srcRate to
// dstRate using linear interpolation on each channel.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, srcRate, dstRate, 2)
}

func resample16(pcm []byte, srcRate, dstRate, channels int) []byte {
	stride := 2 * channels
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < stride {
		return pcm
	}
	srcFrames := len(pcm) / stride
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	sampleAt := func(frame, ch int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[frame*stride+ch*2:])))
	}

	out := make([]byte, dstFrames*stride)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for ch := range channels {
			v := sampleAt(idx, ch)*(1-frac) + sampleAt(next, ch)*frac
			binary.LittleEndian.PutUint16(out[i*stride+ch*2:], uint16(int16(v)))
		}
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
