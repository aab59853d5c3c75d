// Package whisper provides whisper.cpp-backed Transcribers.
//
// [Client] talks to a running whisper-server binary, which exposes a REST API
// at POST /inference. Each Transcribe call re-quantises the float waveform to
// 16-bit PCM, wraps it in a WAV container, and uploads it as one multipart
// request. [Native] (native.go) links whisper.cpp directly through its CGO
// bindings and skips HTTP entirely.
//
// Usage:
//
//	c, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	)
//	text, err := c.Transcribe(ctx, samples)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/provider/stt"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 60 * time.Second

	// maxErrorBody caps how much of a failed response is echoed into errors.
	maxErrorBody = 512
)

var _ stt.Transcriber = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "small.en"). When empty the server uses whichever model it was
// started with.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the language hint sent to the server. Defaults to "en".
// "auto" asks whisper.cpp to detect the language itself.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithSampleRate sets the sample rate written into the WAV header. It must
// match the rate of the samples passed to Transcribe. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *Client) { c.sampleRate = rate }
}

// WithHTTPClient replaces the default HTTP client (60 s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client implements stt.Transcriber against a whisper.cpp HTTP server.
// It is safe for concurrent use.
type Client struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a Client for the whisper.cpp server at serverURL (e.g.,
// "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: stt.DefaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	if c.sampleRate <= 0 {
		return nil, fmt.Errorf("whisper: invalid sample rate %d", c.sampleRate)
	}
	return c, nil
}

// Transcribe implements stt.Transcriber.
func (c *Client) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", stt.ErrEmptyAudio
	}
	wav := audio.EncodeWAV(audio.EncodePCM16(samples), c.sampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}
