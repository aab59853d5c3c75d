package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/humint/internal/config"
)

var (
	watchedYAML  = minimalYAML + "server:\n  log_level: info\n"
	reloadedYAML = strings.Replace(minimalYAML, "[alert, security]", "[alert, breach]", 1) +
		"server:\n  log_level: debug\n"
	brokenYAML = minimalYAML + "server:\n  log_level: bananas\n"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// recorder collects ChangeFunc invocations.
type recorder struct {
	mu    sync.Mutex
	diffs []config.ConfigDiff
	ch    chan struct{}
}

func newRecorder() *recorder { return &recorder{ch: make(chan struct{}, 8)} }

func (r *recorder) onChange(_, _ *config.Config, d config.ConfigDiff) {
	r.mu.Lock()
	r.diffs = append(r.diffs, d)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) calls() []config.ConfigDiff {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.diffs)
}

// newWatched writes content to a temp file and watches it with a long
// interval so only Reload triggers reads.
func newWatched(t *testing.T, content string, rec *recorder) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)
	w, err := config.NewWatcher(path, rec.onChange, config.WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := newWatched(t, watchedYAML, newRecorder())
	if cur := w.Current(); cur == nil || cur.Server.LogLevel != config.LogInfo {
		t.Fatalf("Current() = %+v", cur)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, brokenYAML)
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for an invalid file")
	}
}

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	w, path := newWatched(t, watchedYAML, rec)

	changed, err := w.Reload()
	if err != nil || changed {
		t.Fatalf("Reload of unchanged file = %v, %v", changed, err)
	}

	writeFile(t, path, reloadedYAML)
	changed, err = w.Reload()
	if err != nil || !changed {
		t.Fatalf("Reload after edit = %v, %v", changed, err)
	}

	calls := rec.calls()
	if len(calls) != 1 {
		t.Fatalf("callback ran %d times, want 1", len(calls))
	}
	d := calls[0]
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !slices.Equal(d.AddedKeywords, []string{"breach"}) || !slices.Equal(d.RemovedKeywords, []string{"security"}) {
		t.Errorf("keyword diff added=%v removed=%v", d.AddedKeywords, d.RemovedKeywords)
	}
	if d.RestartRequired {
		t.Error("keyword and log level changes must not require a restart")
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Error("Current() not updated")
	}
}

func TestWatcher_ReloadInvalidKeepsConfig(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	w, path := newWatched(t, watchedYAML, rec)

	writeFile(t, path, brokenYAML)
	if _, err := w.Reload(); err == nil {
		t.Fatal("expected validation error")
	}
	if len(rec.calls()) != 0 {
		t.Error("callback ran for an invalid revision")
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Error("invalid revision replaced the current config")
	}
}

func TestWatcher_PollsForChanges(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watchedYAML)
	rec := newRecorder()
	w, err := config.NewWatcher(path, rec.onChange, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, reloadedYAML)
	// Some filesystems have coarse mtimes; make sure it moved.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	select {
	case <-rec.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("change not picked up by polling")
	}
	if !slices.Equal([]string(w.Current().Keywords), []string{"alert", "breach"}) {
		t.Errorf("Keywords = %v", w.Current().Keywords)
	}
}

func TestWatcher_TouchOnly(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watchedYAML)
	rec := newRecorder()
	w, err := config.NewWatcher(path, rec.onChange, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if n := len(rec.calls()); n != 0 {
		t.Errorf("callback ran %d times for a touch", n)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := newWatched(t, watchedYAML, newRecorder())
	w.Stop()
	w.Stop()
}
