// Package phonetic finds keywords that a transcription engine misspelled but
// that still sound right, e.g. "shipmint" for "shipment".
//
// For each keyword of n words the matcher slides an n-word window over the
// transcript. A window is a hit when
//
//  1. every keyword token shares a Double Metaphone code with the window token
//     at the same position, and
//  2. the Jaro-Winkler similarity of the window and the keyword (compared both
//     with and without spaces, case-insensitive) reaches the threshold.
//
// Tokens too short to encode are compared by Jaro-Winkler alone.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const defaultThreshold = 0.85

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum Jaro-Winkler score a phonetically aligned
// window needs to count as a hit. Default: 0.85.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	threshold float64
}

// New returns a Matcher configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{threshold: defaultThreshold}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Threshold returns the configured similarity threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Find reports whether keyword sounds like some run of words in text, and the
// best similarity score seen.
func (m *Matcher) Find(text, keyword string) (score float64, found bool) {
	kwTokens := tokenize(keyword)
	if len(kwTokens) == 0 {
		return 0, false
	}
	textTokens := tokenize(text)
	if len(textTokens) < len(kwTokens) {
		return 0, false
	}

	kwCodes := make([]map[string]struct{}, len(kwTokens))
	for i, t := range kwTokens {
		kwCodes[i] = codes(t)
	}
	kwFull := strings.Join(kwTokens, " ")

	for start := 0; start+len(kwTokens) <= len(textTokens); start++ {
		window := textTokens[start : start+len(kwTokens)]
		if !aligned(window, kwTokens, kwCodes) {
			continue
		}
		s := similarity(window, kwTokens, kwFull)
		if s > score {
			score = s
		}
		if s >= m.threshold {
			found = true
		}
	}
	return score, found
}

// aligned reports whether each window token sounds like the keyword token at
// the same position.
func aligned(window, kwTokens []string, kwCodes []map[string]struct{}) bool {
	for i, w := range window {
		wc := codes(w)
		if len(wc) == 0 || len(kwCodes[i]) == 0 {
			if matchr.JaroWinkler(w, kwTokens[i], false) < defaultThreshold {
				return false
			}
			continue
		}
		if !overlap(wc, kwCodes[i]) {
			return false
		}
	}
	return true
}

func similarity(window, kwTokens []string, kwFull string) float64 {
	score := matchr.JaroWinkler(strings.Join(window, " "), kwFull, false)
	if len(kwTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(window, ""), strings.Join(kwTokens, ""), false); s > score {
			score = s
		}
	}
	return score
}

// codes returns the non-empty Double Metaphone codes of token.
func codes(token string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(token)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// tokenize lowercases s and splits it on anything that is not a letter,
// digit or apostrophe.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
