// Package sentiment defines the Scorer interface for text polarity scoring.
package sentiment

import "context"

// Scorer rates the overall polarity of a text.
//
// Implementations must be safe for concurrent use and must accept empty text,
// for which they return a neutral score.
type Scorer interface {
	// Score returns a compound polarity in [-1, 1]: -1 most negative,
	// 0 neutral, 1 most positive.
	Score(ctx context.Context, text string) (float64, error)
}

// ScorerFunc adapts an ordinary function to the Scorer interface.
type ScorerFunc func(ctx context.Context, text string) (float64, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}

// Clamp limits s to [-1, 1].
func Clamp(s float64) float64 {
	return max(-1, min(1, s))
}
