// Package events defines the SpeechEvent record produced for every
// speech-bearing audio chunk, and the Sink boundary it is handed to.
//
// A SpeechEvent is immutable once built. Sinks receive it by value and must
// not retain its Keywords slice beyond the Write call without copying.
package events

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form used when an event timestamp is
// serialised: UTC with microsecond precision and a "Z" suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// SpeechEvent is the assembled result for one chunk that contained speech.
type SpeechEvent struct {
	// Timestamp is the moment of assembly, in UTC.
	Timestamp time.Time

	// Transcript is the whitespace-trimmed transcription. It may be empty
	// when the engine recognised nothing.
	Transcript string

	// Language is a lowercase ISO 639-1 tag, or "" when Transcript is empty.
	Language string

	// Keywords lists the configured keywords found in Transcript, in
	// configuration order. Never nil.
	Keywords []string

	// Sentiment is the compound polarity score in [-1, 1].
	Sentiment float64
}

// Clone returns a deep copy of e.
func (e SpeechEvent) Clone() SpeechEvent {
	e.Keywords = slices.Clone(e.Keywords)
	if e.Keywords == nil {
		e.Keywords = []string{}
	}
	return e
}

// TimestampString returns the serialised timestamp, e.g.
// "2024-05-01T12:00:00.000000Z".
func (e SpeechEvent) TimestampString() string {
	return e.Timestamp.UTC().Format(TimestampLayout)
}

// SentimentString returns the shortest decimal form that round-trips the
// score.
func (e SpeechEvent) SentimentString() string {
	return strconv.FormatFloat(e.Sentiment, 'f', -1, 64)
}

// KeywordsString returns the keywords joined with commas.
func (e SpeechEvent) KeywordsString() string {
	return strings.Join(e.Keywords, ",")
}

// legacyTimestampLayout matches naive UTC timestamps without a zone, such
// as "2024-05-01T12:00:00" or "2024-05-01T12:00:00.123456".
const legacyTimestampLayout = "2006-01-02T15:04:05.999999"

// ParseTimestamp is the inverse of [SpeechEvent.TimestampString]. It also
// accepts zone-less timestamps (with or without a fraction) and reads them
// as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t.UTC(), nil
	}
	if legacy, lerr := time.ParseInLocation(legacyTimestampLayout, s, time.UTC); lerr == nil {
		return legacy, nil
	}
	return time.Time{}, err
}

// ParseKeywords is the inverse of [SpeechEvent.KeywordsString]. An empty
// string yields an empty, non-nil slice.
func ParseKeywords(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// Record is a stored event together with its store-assigned identifier.
type Record struct {
	ID    int64
	Event SpeechEvent
}

// Payload is the flat, JSON-friendly form of a Record used by the CLI and
// stream sinks.
type Payload struct {
	ID         int64    `json:"id,omitempty"`
	Timestamp  string   `json:"timestamp"`
	Transcript string   `json:"transcript"`
	Language   string   `json:"language"`
	Keywords   []string `json:"keywords"`
	Sentiment  float64  `json:"sentiment"`
}

// Payload converts r to its flat form.
func (r Record) Payload() Payload {
	kw := r.Event.Keywords
	if kw == nil {
		kw = []string{}
	}
	return Payload{
		ID:         r.ID,
		Timestamp:  r.Event.TimestampString(),
		Transcript: r.Event.Transcript,
		Language:   r.Event.Language,
		Keywords:   kw,
		Sentiment:  r.Event.Sentiment,
	}
}

// ContainsKeyword reports whether e matched keyword exactly.
func (e SpeechEvent) ContainsKeyword(keyword string) bool {
	return slices.Contains(e.Keywords, keyword)
}
