// Package vader provides a sentiment.Scorer using the VADER lexicon and
// rule set (github.com/jonreiter/govader). The compound score is returned.
package vader

import (
	"context"

	"github.com/jonreiter/govader"

	"github.com/MrWong99/humint/pkg/provider/sentiment"
)

var _ sentiment.Scorer = (*Scorer)(nil)

// Scorer implements sentiment.Scorer. The analyzer only reads its lexicon
// after construction, so one Scorer serves all goroutines.
type Scorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// New loads the VADER lexicon.
func New() *Scorer {
	return &Scorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score implements sentiment.Scorer.
func (s *Scorer) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if text == "" {
		return 0, nil
	}
	return sentiment.Clamp(s.analyzer.PolarityScores(text).Compound), nil
}
