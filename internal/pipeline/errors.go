package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a step of chunk processing that can fail.
type Stage string

// Failure stages, in pipeline order.
const (
	StageSegment    Stage = "segment"
	StageGate       Stage = "gate"
	StageTranscribe Stage = "transcribe"
	StageLanguage   Stage = "language"
	StageSentiment  Stage = "sentiment"
	StageStamp      Stage = "stamp"
	StageSink       Stage = "sink"
)

// Stage sentinels. A [*StageError] matches the sentinel of its stage with
// errors.Is.
var (
	ErrSegmentation      = errors.New("pipeline: malformed chunk")
	ErrClassification    = errors.New("pipeline: speech classification failed")
	ErrTranscription     = errors.New("pipeline: transcription failed")
	ErrLanguageDetection = errors.New("pipeline: language detection failed")
	ErrSentiment         = errors.New("pipeline: sentiment scoring failed")
	ErrSink              = errors.New("pipeline: sink write failed")
)

// Sentinel returns the error sentinel for s, or nil for an unknown stage.
// [StageStamp] has none; it only fails on cancellation.
func (s Stage) Sentinel() error {
	switch s {
	case StageSegment:
		return ErrSegmentation
	case StageGate:
		return ErrClassification
	case StageTranscribe:
		return ErrTranscription
	case StageLanguage:
		return ErrLanguageDetection
	case StageSentiment:
		return ErrSentiment
	case StageSink:
		return ErrSink
	default:
		return nil
	}
}

// StageError reports which step of which chunk failed. The chunk produced
// no event.
type StageError struct {
	Stage   Stage
	ChunkID string
	Err     error
}

func (e *StageError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline: chunk %s: %s: %v", e.ChunkID, e.Stage, e.Err)
}

// Unwrap exposes both the stage sentinel and the cause.
func (e *StageError) Unwrap() []error {
	if s := e.Stage.Sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// StageOf returns the failing stage of err, or "" when err is not a
// [*StageError].
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func stageErr(stage Stage, chunkID string, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		if se.ChunkID == "" {
			se.ChunkID = chunkID
		}
		return se
	}
	return &StageError{Stage: stage, ChunkID: chunkID, Err: err}
}
