package pipeline_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/humint/internal/pipeline"
	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/provider/vad"
	vadmock "github.com/MrWong99/humint/pkg/provider/vad/mock"
)

// framesOf segments n whole frames at 16 kHz, marking frame i with byte i+1.
func framesOf(t *testing.T, n int) [][]byte {
	t.Helper()
	frameLen := audio.FrameLen(16000, audio.DefaultFrameMs)
	chunk := make([]byte, n*frameLen)
	for i := range n {
		chunk[i*frameLen] = byte(i + 1)
	}
	seq, err := audio.Segment(chunk, 16000, audio.DefaultFrameMs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	return slices.Collect(seq)
}

func TestHasSpeech_ShortCircuits(t *testing.T) {
	t.Parallel()
	frames := framesOf(t, 5)
	c := &vadmock.Classifier{Results: []bool{false, false, false, true, false}}

	res, err := pipeline.HasSpeech(context.Background(), slices.Values(frames), 16000, c)
	if err != nil {
		t.Fatalf("HasSpeech: %v", err)
	}
	if !res.Speech {
		t.Error("expected speech")
	}
	if res.Evaluated != 4 || c.CallCount() != 4 {
		t.Errorf("evaluated %d frames (%d calls); want 4", res.Evaluated, c.CallCount())
	}
	for i, call := range c.Calls {
		if call.Frame[0] != byte(i+1) {
			t.Errorf("call %d classified frame %d; want in-order frames", i, call.Frame[0]-1)
		}
		if call.SampleRate != 16000 {
			t.Errorf("call %d sample rate = %d", i, call.SampleRate)
		}
	}
}

func TestHasSpeech_NoSpeech(t *testing.T) {
	t.Parallel()
	c := &vadmock.Classifier{}
	res, err := pipeline.HasSpeech(context.Background(), slices.Values(framesOf(t, 3)), 16000, c)
	if err != nil {
		t.Fatalf("HasSpeech: %v", err)
	}
	if res.Speech || res.Evaluated != 3 {
		t.Errorf("result = %+v; want no speech after 3 frames", res)
	}
}

func TestHasSpeech_EmptySequence(t *testing.T) {
	t.Parallel()
	c := &vadmock.Classifier{Default: true}
	res, err := pipeline.HasSpeech(context.Background(), slices.Values([][]byte(nil)), 16000, c)
	if err != nil || res.Speech || res.Evaluated != 0 {
		t.Errorf("HasSpeech(empty) = %+v, %v; want false, 0, nil", res, err)
	}
	if c.CallCount() != 0 {
		t.Error("classifier called for empty sequence")
	}
}

func TestHasSpeech_ShorterThanOneFrame(t *testing.T) {
	t.Parallel()
	frameLen := audio.FrameLen(16000, audio.DefaultFrameMs)
	seq, err := audio.Segment(make([]byte, frameLen-2), 16000, audio.DefaultFrameMs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	res, err := pipeline.HasSpeech(context.Background(), seq, 16000, &vadmock.Classifier{Default: true})
	if err != nil || res.Speech {
		t.Errorf("HasSpeech(short chunk) = %+v, %v; want false", res, err)
	}
}

func TestHasSpeech_Monotonic(t *testing.T) {
	t.Parallel()
	// Whichever single frame is positive, the gate must fire.
	for pos := range 6 {
		results := make([]bool, 6)
		results[pos] = true
		c := &vadmock.Classifier{Results: results}
		res, err := pipeline.HasSpeech(context.Background(), slices.Values(framesOf(t, 6)), 16000, c)
		if err != nil {
			t.Fatalf("pos %d: %v", pos, err)
		}
		if !res.Speech || res.Evaluated != pos+1 {
			t.Errorf("pos %d: result = %+v; want speech after %d frames", pos, res, pos+1)
		}
	}
}

func TestHasSpeech_ClassifierError(t *testing.T) {
	t.Parallel()
	boom := errors.New("vad exploded")
	c := &vadmock.Classifier{ErrAt: map[int]error{1: boom}, Default: false}

	res, err := pipeline.HasSpeech(context.Background(), slices.Values(framesOf(t, 4)), 16000, c)
	if !errors.Is(err, boom) || !errors.Is(err, pipeline.ErrClassification) {
		t.Fatalf("err = %v; want wrapped vad error and ErrClassification", err)
	}
	if pipeline.StageOf(err) != pipeline.StageGate {
		t.Errorf("stage = %q; want gate", pipeline.StageOf(err))
	}
	if res.Evaluated != 2 || c.CallCount() != 2 {
		t.Errorf("evaluated %d; want 2 (no retry, no further frames)", res.Evaluated)
	}
}

func TestHasSpeech_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := vad.ClassifierFunc(func(context.Context, []byte, int) (bool, error) {
		calls++
		cancel()
		return false, nil
	})

	_, err := pipeline.HasSpeech(ctx, slices.Values(framesOf(t, 5)), 16000, c)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("classifier called %d times after cancellation; want 1", calls)
	}
}
