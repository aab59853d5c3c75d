// Package capture turns a raw PCM byte stream into pipeline chunks.
//
// The microphone capture loop itself lives outside this service: anything
// that can write signed 16-bit little-endian PCM to a file, FIFO or stdin
// (arecord, ffmpeg, sox) can feed [ReaderSource].
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/humint/internal/pipeline"
	"github.com/MrWong99/humint/pkg/audio"
)

// DefaultChunkMs is the chunk duration used when none is configured.
const DefaultChunkMs = 3000

// Source produces chunks until its input ends or ctx is cancelled. The
// returned channel is closed when production stops.
type Source interface {
	Chunks(ctx context.Context) (<-chan pipeline.Chunk, error)
	Close() error
}

// Option configures a [ReaderSource].
type Option func(*ReaderSource)

// WithChunkMs sets the chunk duration. Default: [DefaultChunkMs].
func WithChunkMs(ms int) Option {
	return func(s *ReaderSource) { s.chunkMs = ms }
}

// WithIDFunc replaces the chunk ID generator. Default: random UUIDs.
func WithIDFunc(f func() string) Option {
	return func(s *ReaderSource) { s.newID = f }
}

// WithBuffer sets the capacity of the chunk channel. Default: 4.
func WithBuffer(n int) Option {
	return func(s *ReaderSource) { s.buffer = n }
}

// ReaderSource cuts fixed-duration chunks out of an io.Reader carrying raw
// s16le PCM and converts them to mono at the target rate. The final chunk
// may be shorter.
type ReaderSource struct {
	r       io.Reader
	closer  io.Closer
	in      audio.Format
	conv    *audio.Converter
	chunkMs int
	buffer  int
	newID   func() string

	mu      sync.Mutex
	started bool
	err     error

	closeOnce sync.Once
	closeErr  error
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource reads PCM in format in from r and emits mono chunks at
// targetRate.
func NewReaderSource(r io.Reader, in audio.Format, targetRate int, opts ...Option) (*ReaderSource, error) {
	s := &ReaderSource{
		r:       r,
		in:      in,
		conv:    &audio.Converter{Target: audio.Format{SampleRate: targetRate, Channels: 1}},
		chunkMs: DefaultChunkMs,
		buffer:  4,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	switch {
	case r == nil:
		return nil, errors.New("capture: reader is nil")
	case in.SampleRate <= 0 || targetRate <= 0:
		return nil, fmt.Errorf("capture: invalid sample rates %d -> %d", in.SampleRate, targetRate)
	case in.Channels != 1 && in.Channels != 2:
		return nil, fmt.Errorf("capture: unsupported channel count %d", in.Channels)
	case s.chunkMs <= 0:
		return nil, fmt.Errorf("capture: invalid chunk duration %d ms", s.chunkMs)
	}
	if s.chunkBytes() == 0 {
		return nil, fmt.Errorf("capture: %d ms at %s holds no samples", s.chunkMs, in)
	}
	return s, nil
}

// Open reads from the file or FIFO at path, or from stdin when path is "" or
// "-". Close releases the file.
func Open(path string, in audio.Format, targetRate int, opts ...Option) (*ReaderSource, error) {
	if path == "" || path == "-" {
		return NewReaderSource(os.Stdin, in, targetRate, opts...)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	s, err := NewReaderSource(f, in, targetRate, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// chunkBytes is the size of one chunk in the input format.
func (s *ReaderSource) chunkBytes() int {
	samples := s.in.SampleRate * s.chunkMs / 1000
	return samples * audio.BytesPerSample * s.in.Channels
}

// Chunks starts reading. It may be called only once. Cancelling ctx closes
// a file opened by [Open], which unblocks a read waiting on an idle FIFO.
func (s *ReaderSource) Chunks(ctx context.Context) (<-chan pipeline.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, errors.New("capture: source already started")
	}
	s.started = true

	out := make(chan pipeline.Chunk, s.buffer)
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	go s.read(ctx, out, stop)
	return out, nil
}

func (s *ReaderSource) read(ctx context.Context, out chan<- pipeline.Chunk, stop func() bool) {
	defer close(out)
	defer stop()
	size := s.chunkBytes()
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			pcm := s.conv.Convert(buf[:n], s.in)
			if len(pcm) > 0 {
				chunk := pipeline.Chunk{ID: s.newID(), PCM: pcm, SampleRate: s.conv.Target.SampleRate}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
		switch {
		case err == nil:
			if ctx.Err() != nil {
				return
			}
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			slog.Debug("capture: input ended")
			return
		default:
			if ctx.Err() == nil {
				s.setErr(fmt.Errorf("capture: read: %w", err))
			}
			return
		}
	}
}

func (s *ReaderSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Err returns the read error that stopped the source, if any. End of input
// and cancellation are not errors. Valid once the chunk channel is closed.
func (s *ReaderSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases a file opened by [Open]. Closing unblocks a pending read.
// Later calls return the first result.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	s.closeOnce.Do(func() { s.closeErr = s.closer.Close() })
	return s.closeErr
}
