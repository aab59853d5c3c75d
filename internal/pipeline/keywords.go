package pipeline

import (
	"strings"

	"github.com/MrWong99/humint/internal/keyword/phonetic"
)

// MatchKeywords returns the keywords that occur in text as case-insensitive
// substrings. Output follows the order of keywords, and a keyword listed
// twice is returned twice. The result is never nil.
func MatchKeywords(text string, keywords []string) []string {
	out := make([]string, 0, len(keywords))
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			out = append(out, k)
		}
	}
	return out
}

// KeywordMatcher extends [MatchKeywords] with optional deduplication and a
// phonetic fallback. The zero value behaves exactly like MatchKeywords.
type KeywordMatcher struct {
	// Dedup drops repeated keywords (compared case-insensitively), keeping
	// the first.
	Dedup bool

	// Phonetic, when set, is asked about every keyword that is not a
	// substring of the text.
	Phonetic *phonetic.Matcher
}

// Match returns the matched keywords in keyword order. The result is never
// nil. A nil receiver is equivalent to the zero value.
func (m *KeywordMatcher) Match(text string, keywords []string) []string {
	if m == nil || (!m.Dedup && m.Phonetic == nil) {
		return MatchKeywords(text, keywords)
	}

	out := make([]string, 0, len(keywords))
	lower := strings.ToLower(text)
	var seen map[string]bool
	if m.Dedup {
		seen = make(map[string]bool, len(keywords))
	}
	for _, k := range keywords {
		kl := strings.ToLower(k)
		if seen[kl] {
			continue
		}
		hit := strings.Contains(lower, kl)
		if !hit && m.Phonetic != nil && text != "" {
			_, hit = m.Phonetic.Find(text, k)
		}
		if !hit {
			continue
		}
		if seen != nil {
			seen[kl] = true
		}
		out = append(out, k)
	}
	return out
}
