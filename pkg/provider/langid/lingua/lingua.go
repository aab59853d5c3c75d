// Package lingua provides a langid.Detector backed by lingua-go, an
// n-gram language identifier that runs fully offline.
package lingua

import (
	"context"
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/MrWong99/humint/pkg/provider/langid"
)

var _ langid.Detector = (*Detector)(nil)

// Detector implements langid.Detector. It is safe for concurrent use.
type Detector struct {
	detector lingua.LanguageDetector
}

type config struct {
	languages   []string
	minDistance float64
	lowAccuracy bool
}

// Option is a functional option for Detector.
type Option func(*config)

// WithLanguages restricts detection to the given ISO 639-1 codes. Fewer
// candidate languages load faster and confuse less. At least two are
// required. By default every supported language is a candidate.
func WithLanguages(codes ...string) Option {
	return func(c *config) { c.languages = codes }
}

// WithMinimumRelativeDistance makes the detector return no language for
// ambiguous text instead of its best guess. Valid range is [0, 0.99].
func WithMinimumRelativeDistance(d float64) Option {
	return func(c *config) { c.minDistance = d }
}

// WithLowAccuracyMode trades accuracy on short texts for lower memory use.
func WithLowAccuracyMode() Option {
	return func(c *config) { c.lowAccuracy = true }
}

// New builds a Detector. Language models are loaded lazily on first use.
func New(opts ...Option) (*Detector, error) {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.minDistance < 0 || cfg.minDistance > 0.99 {
		return nil, fmt.Errorf("lingua: minimum relative distance %v out of range [0, 0.99]", cfg.minDistance)
	}

	var b lingua.LanguageDetectorBuilder
	if len(cfg.languages) == 0 {
		b = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	} else {
		langs, err := resolveLanguages(cfg.languages)
		if err != nil {
			return nil, err
		}
		b = lingua.NewLanguageDetectorBuilder().FromLanguages(langs...)
	}
	if cfg.minDistance > 0 {
		b = b.WithMinimumRelativeDistance(cfg.minDistance)
	}
	if cfg.lowAccuracy {
		b = b.WithLowAccuracyMode()
	}
	return &Detector{detector: b.Build()}, nil
}

// DetectLanguage implements langid.Detector.
func (d *Detector) DetectLanguage(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", langid.ErrUndetermined
	}
	return Tag(lang), nil
}

// Tag returns the lowercase ISO 639-1 code for lang.
func Tag(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

func resolveLanguages(codes []string) ([]lingua.Language, error) {
	byCode := make(map[string]lingua.Language)
	for _, l := range lingua.AllLanguages() {
		byCode[Tag(l)] = l
	}
	seen := make(map[lingua.Language]bool, len(codes))
	langs := make([]lingua.Language, 0, len(codes))
	for _, code := range codes {
		l, ok := byCode[strings.ToLower(strings.TrimSpace(code))]
		if !ok {
			return nil, fmt.Errorf("lingua: unsupported language code %q", code)
		}
		if !seen[l] {
			seen[l] = true
			langs = append(langs, l)
		}
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("lingua: need at least 2 distinct languages, got %d", len(langs))
	}
	return langs, nil
}
