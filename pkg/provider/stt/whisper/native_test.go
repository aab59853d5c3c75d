package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/humint/pkg/provider/stt"
	"github.com/MrWong99/humint/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := whisper.NewNative(""); err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath_ReturnsError(t *testing.T) {
	if _, err := whisper.NewNative("/nonexistent/path/to/model.bin"); err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestNative_EmptyAudio(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	if _, err := n.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v; want ErrEmptyAudio", err)
	}
}

func TestNative_SilenceTranscribes(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t), whisper.WithNativeConcurrency(2))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	// One second of silence must not fail; whisper may hallucinate a token
	// or return nothing, both are acceptable.
	if _, err := n.Transcribe(context.Background(), make([]float32, 16000)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}
