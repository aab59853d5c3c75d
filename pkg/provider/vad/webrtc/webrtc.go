// Package webrtc provides a vad.Classifier backed by the WebRTC voice activity
// detector (github.com/baabaaox/go-webrtcvad, CGO).
//
// A WebRTC VAD instance carries internal filter state and is not safe for
// concurrent use, so the Classifier keeps a bounded pool of instances. Each
// IsSpeech call borrows one instance for the duration of a single frame.
//
// WebRTC VAD accepts 8, 16, 32 and 48 kHz audio in 10, 20 or 30 ms frames.
// Any other combination is rejected with vad.ErrUnsupportedFormat before the
// native library is touched.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	webrtcvad "github.com/baabaaox/go-webrtcvad"

	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/provider/vad"
)

const (
	// DefaultMode is the most aggressive filtering mode, the fewest false
	// positives on noisy input.
	DefaultMode = 3

	// DefaultPoolSize bounds the number of live native instances.
	DefaultPoolSize = 8
)

var errClosed = errors.New("webrtc vad: classifier is closed")

// Option is a functional option for configuring a Classifier.
type Option func(*Classifier)

// WithMode sets the aggressiveness mode (0 = least, 3 = most aggressive).
func WithMode(mode int) Option {
	return func(c *Classifier) { c.mode = mode }
}

// WithPoolSize sets the maximum number of native instances. Callers beyond
// this bound wait for a free instance.
func WithPoolSize(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// Classifier implements vad.Classifier over a pool of WebRTC VAD instances.
// It is safe for concurrent use.
type Classifier struct {
	mode     int
	poolSize int

	idle chan webrtcvad.VadInst
	// slots limits the number of instances that exist at once.
	slots chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ vad.Classifier = (*Classifier)(nil)

// New creates a Classifier. One instance is created eagerly so that a broken
// native library fails at startup rather than on the first chunk.
func New(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		mode:     DefaultMode,
		poolSize: DefaultPoolSize,
	}
	for _, o := range opts {
		o(c)
	}
	if c.mode < 0 || c.mode > 3 {
		return nil, fmt.Errorf("webrtc vad: mode %d out of range [0, 3]", c.mode)
	}
	c.idle = make(chan webrtcvad.VadInst, c.poolSize)
	c.slots = make(chan struct{}, c.poolSize)

	c.slots <- struct{}{}
	inst, err := c.newInstance()
	if err != nil {
		<-c.slots
		return nil, err
	}
	c.idle <- inst
	return c, nil
}

// ValidFormat reports whether WebRTC VAD can process frameLen-byte frames at
// sampleRate.
func ValidFormat(sampleRate, frameLen int) bool {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return false
	}
	for _, ms := range []int{10, 20, 30} {
		if frameLen == audio.FrameLen(sampleRate, ms) {
			return true
		}
	}
	return false
}

// IsSpeech implements vad.Classifier.
func (c *Classifier) IsSpeech(ctx context.Context, frame []byte, sampleRate int) (bool, error) {
	if !ValidFormat(sampleRate, len(frame)) {
		return false, fmt.Errorf("webrtc vad: %w: rate=%d frame_bytes=%d", vad.ErrUnsupportedFormat, sampleRate, len(frame))
	}
	inst, err := c.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer c.release(inst)

	active, err := webrtcvad.Process(inst, sampleRate, frame, len(frame)/audio.BytesPerSample)
	if err != nil {
		return false, fmt.Errorf("webrtc vad: process: %w", err)
	}
	return active, nil
}

// Close frees every idle native instance. Instances in use are freed when
// they are released. Calling Close more than once is safe.
func (c *Classifier) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	for {
		select {
		case inst := <-c.idle:
			webrtcvad.Free(inst)
			<-c.slots
		default:
			return nil
		}
	}
}

func (c *Classifier) acquire(ctx context.Context) (webrtcvad.VadInst, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, errClosed
	}

	select {
	case inst := <-c.idle:
		return inst, nil
	default:
	}

	select {
	case inst := <-c.idle:
		return inst, nil
	case c.slots <- struct{}{}:
		inst, err := c.newInstance()
		if err != nil {
			<-c.slots
			return nil, err
		}
		return inst, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Classifier) release(inst webrtcvad.VadInst) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		webrtcvad.Free(inst)
		<-c.slots
		return
	}
	c.idle <- inst
}

func (c *Classifier) newInstance() (webrtcvad.VadInst, error) {
	inst := webrtcvad.Create()
	if inst == nil {
		return nil, errors.New("webrtc vad: failed to create instance")
	}
	if err := webrtcvad.Init(inst); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("webrtc vad: init: %w", err)
	}
	if err := webrtcvad.SetMode(inst, c.mode); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("webrtc vad: set mode %d: %w", c.mode, err)
	}
	return inst, nil
}
