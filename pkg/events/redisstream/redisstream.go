// Package redisstream provides an events.Sink that appends every event to a
// Redis stream with XADD, so alerting consumers can follow new speech with
// XREAD or consumer groups.
//
// Each stream entry carries the flat fields timestamp, transcript, language,
// keywords (a JSON array) and sentiment. [Decode] turns an entry back into an
// events.SpeechEvent.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/humint/pkg/events"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "humint:events"

// Compile-time interface checks.
var (
	_ events.Sink   = (*Sink)(nil)
	_ events.Pinger = (*Sink)(nil)
)

// Config configures a Sink.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// Stream is the stream key. Defaults to DefaultStream.
	Stream string

	// MaxLen caps the stream length with approximate trimming (MAXLEN ~).
	// Zero keeps every entry.
	MaxLen int64
}

// Sink writes events to a Redis stream. Safe for concurrent use.
type Sink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis stream: address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis stream: ping: %w", err)
	}
	return NewWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewWithClient wraps an existing client. The Sink takes ownership of it.
func NewWithClient(client *redis.Client, stream string, maxLen int64) *Sink {
	if stream == "" {
		stream = DefaultStream
	}
	return &Sink{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the stream key.
func (s *Sink) Stream() string { return s.stream }

// Write implements events.Sink.
func (s *Sink) Write(ctx context.Context, ev events.SpeechEvent) error {
	kw := ev.Keywords
	if kw == nil {
		kw = []string{}
	}
	keywords, err := sonic.Marshal(kw)
	if err != nil {
		return fmt.Errorf("redis stream: encode keywords: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"timestamp":  ev.TimestampString(),
			"transcript": ev.Transcript,
			"language":   ev.Language,
			"keywords":   string(keywords),
			"sentiment":  ev.SentimentString(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis stream: xadd: %w", err)
	}
	return nil
}

// Ping implements events.Pinger.
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Sink) Close() error {
	return s.client.Close()
}

// Decode converts a stream entry written by [Sink.Write] back into an event.
func Decode(msg redis.XMessage) (events.SpeechEvent, error) {
	field := func(name string) (string, error) {
		v, ok := msg.Values[name]
		if !ok {
			return "", fmt.Errorf("redis stream: entry %s: missing field %q", msg.ID, name)
		}
		str, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("redis stream: entry %s: field %q is %T", msg.ID, name, v)
		}
		return str, nil
	}

	var ev events.SpeechEvent
	ts, err := field("timestamp")
	if err != nil {
		return ev, err
	}
	if ev.Timestamp, err = events.ParseTimestamp(ts); err != nil {
		return ev, fmt.Errorf("redis stream: entry %s: %w", msg.ID, err)
	}
	if ev.Transcript, err = field("transcript"); err != nil {
		return ev, err
	}
	if ev.Language, err = field("language"); err != nil {
		return ev, err
	}
	kw, err := field("keywords")
	if err != nil {
		return ev, err
	}
	ev.Keywords = []string{}
	if err := sonic.UnmarshalString(kw, &ev.Keywords); err != nil {
		return ev, fmt.Errorf("redis stream: entry %s: keywords: %w", msg.ID, err)
	}
	sent, err := field("sentiment")
	if err != nil {
		return ev, err
	}
	if ev.Sentiment, err = strconv.ParseFloat(sent, 64); err != nil {
		return ev, fmt.Errorf("redis stream: entry %s: sentiment: %w", msg.ID, err)
	}
	return ev, nil
}
