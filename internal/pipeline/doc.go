// Package pipeline turns raw audio chunks into speech events.
//
// Each chunk runs through a linear sequence of steps:
//
//	GATE → DECODE → TRANSCRIBE → LANGUAGE → KEYWORDS → SENTIMENT → STAMP → BUILD
//
// The gate slices the chunk into fixed-duration frames and asks the speech
// classifier about each one until a frame is positive. A chunk without speech
// stops there: no event, no error, and no other model is called. Otherwise
// the [Assembler] drives transcription, language identification, keyword
// matching and sentiment scoring, stamps the assembly time, and builds an
// immutable [events.SpeechEvent]. [Pipeline] hands that event to the sink.
//
// A failure in any step aborts the chunk with a [*StageError] naming the
// step; no partial event ever reaches the sink. Nothing is retried. The
// context is checked between steps, so a cancelled chunk stops at the next
// boundary.
//
// Assembler and Pipeline hold only read-only state after construction and
// may process any number of chunks concurrently.
package pipeline
