// Package langid defines the Detector interface for language identification
// of transcribed text.
//
// Tags are lowercase ISO 639-1 codes ("en", "de"). Implementations must be
// safe for concurrent use.
package langid

import (
	"context"
	"errors"
)

// ErrUndetermined is returned when a Detector cannot identify the language of
// non-empty text, for example when it holds only digits or punctuation.
var ErrUndetermined = errors.New("langid: language could not be determined")

// Detector identifies the language of a piece of text.
type Detector interface {
	// DetectLanguage returns the ISO 639-1 tag for text. Callers must not
	// pass empty text.
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// DetectorFunc adapts an ordinary function to the Detector interface.
type DetectorFunc func(ctx context.Context, text string) (string, error)

// DetectLanguage calls f.
func (f DetectorFunc) DetectLanguage(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
