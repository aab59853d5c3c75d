package pipeline

import (
	"context"
	"fmt"
	"iter"

	"github.com/MrWong99/humint/pkg/provider/vad"
)

// GateResult is the speech decision for one chunk.
type GateResult struct {
	// Speech is true iff some frame classified as speech.
	Speech bool

	// Evaluated is the number of frames passed to the classifier. The gate
	// stops at the first positive frame, so later frames are not counted.
	Evaluated int
}

// HasSpeech classifies frames in order and stops at the first positive one.
// An empty sequence gives a negative result. A classifier failure or a
// cancelled ctx aborts the gate with a [*StageError] for [StageGate].
func HasSpeech(ctx context.Context, frames iter.Seq[[]byte], sampleRate int, c vad.Classifier) (GateResult, error) {
	var res GateResult
	for frame := range frames {
		if err := ctx.Err(); err != nil {
			return res, &StageError{Stage: StageGate, Err: err}
		}
		speech, err := c.IsSpeech(ctx, frame, sampleRate)
		res.Evaluated++
		if err != nil {
			return res, &StageError{Stage: StageGate, Err: fmt.Errorf("frame %d: %w", res.Evaluated-1, err)}
		}
		if speech {
			res.Speech = true
			return res, nil
		}
	}
	return res, nil
}
