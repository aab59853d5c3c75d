package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/humint/pkg/provider/stt"
	"github.com/MrWong99/humint/pkg/provider/stt/openai"
)

func newFakeAPI(t *testing.T, status int, text string, hits *atomic.Int32, lang *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if lang != nil {
			lang.Store(r.FormValue("language"))
		}
		if _, hdr, err := r.FormFile("file"); err != nil || hdr.Filename != "audio.wav" {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "boom"}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := openai.New("", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	var lang atomic.Value
	srv := newFakeAPI(t, http.StatusOK, "guten tag", &hits, &lang)

	tr, err := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := tr.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "guten tag" {
		t.Errorf("text = %q; want %q", got, "guten tag")
	}
	if l, _ := lang.Load().(string); l != "de" {
		t.Errorf("language field = %q; want de", l)
	}
}

func TestTranscribe_ServerErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := newFakeAPI(t, http.StatusInternalServerError, "", &hits, nil)

	tr, _ := openai.New("sk-test", "whisper-1", openai.WithBaseURL(srv.URL+"/v1/"))
	if _, err := tr.Transcribe(context.Background(), make([]float32, 160)); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times; want exactly 1", n)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()
	tr, _ := openai.New("sk-test", "")
	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v; want ErrEmptyAudio", err)
	}
}
