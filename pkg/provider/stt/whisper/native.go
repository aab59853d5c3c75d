// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/humint/pkg/provider/stt"
)

var _ stt.Transcriber = (*Native)(nil)

// Native implements stt.Transcriber using the whisper.cpp Go bindings. The
// model is loaded once and shared; every Transcribe call gets a fresh
// inference context because contexts are not goroutine-safe.
type Native struct {
	model    whisperlib.Model
	language string
	// sem bounds concurrent inference contexts; each one holds sizeable
	// native buffers.
	sem chan struct{}
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the transcription language (e.g., "en", "auto").
// Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeConcurrency limits how many inferences run at once. Defaults
// to 1.
func WithNativeConcurrency(limit int) NativeOption {
	return func(n *Native) {
		if limit > 0 {
			n.sem = make(chan struct{}, limit)
		}
	}
}

// NewNative loads the whisper.cpp model at modelPath. The caller must call
// Close when the transcriber is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	n := &Native{
		model:    model,
		language: defaultLanguage,
		sem:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe implements stt.Transcriber. Segment texts are trimmed and joined
// with single spaces.
func (n *Native) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", stt.ErrEmptyAudio
	}
	select {
	case n.sem <- struct{}{}:
		defer func() { <-n.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
