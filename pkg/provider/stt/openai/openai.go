// Package openai provides a Transcriber backed by the OpenAI audio
// transcription API (or any server that mirrors it, such as a self-hosted
// faster-whisper gateway).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/provider/stt"
)

// DefaultModel is the default transcription model.
const DefaultModel = oai.AudioModelWhisper1

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber implements stt.Transcriber using the OpenAI API.
type Transcriber struct {
	client     oai.Client
	model      string
	language   string
	sampleRate int
}

// config holds optional configuration for the transcriber.
type config struct {
	baseURL    string
	language   string
	sampleRate int
	timeout    time.Duration
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithLanguage sets the ISO-639-1 language hint. Empty lets the API detect it.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithSampleRate sets the rate written into the uploaded WAV header.
// Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *config) { c.sampleRate = rate }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Transcriber. If model is empty, DefaultModel (whisper-1)
// is used. The client never retries on its own.
func New(apiKey, model string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{sampleRate: stt.DefaultSampleRate}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, fmt.Errorf("openai stt: invalid sample rate %d", cfg.sampleRate)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Transcriber{
		client:     oai.NewClient(reqOpts...),
		model:      model,
		language:   cfg.language,
		sampleRate: cfg.sampleRate,
	}, nil
}

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", stt.ErrEmptyAudio
	}
	wav := audio.EncodeWAV(audio.EncodePCM16(samples), t.sampleRate, 1)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return resp.Text, nil
}
