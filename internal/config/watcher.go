package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] stats the file.
const DefaultWatchInterval = 5 * time.Second

// ChangeFunc is called after a changed, valid config has been loaded. diff is
// Diff(old, new).
type ChangeFunc func(old, new *Config, diff ConfigDiff)

// revision identifies one version of the file on disk.
type revision struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher keeps the most recent valid config from a file. It polls the
// file's mtime and can be told to reload at once (on SIGHUP, say). An
// invalid revision is logged and skipped; the last valid config stays
// current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc

	// reloadMu serialises reloads so callbacks never overlap.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	rev     revision

	stopOnce sync.Once
	quit     chan struct{}
	stopped  chan struct{}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it. onChange may
// be nil.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, rev, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.rev = cfg, rev

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload reads the file now, regardless of its mtime. It reports whether
// the content changed; on a parse or validation error the current config is
// kept and the error returned.
func (w *Watcher) Reload() (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	return w.apply()
}

// Stop ends polling and waits for an in-flight reload. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}

func (w *Watcher) poll() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-ticker.C:
			if !w.touched() {
				continue
			}
			w.reloadMu.Lock()
			if _, err := w.apply(); err != nil {
				slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
			}
			w.reloadMu.Unlock()
		}
	}
}

// touched reports whether the file's mtime moved since the last read.
func (w *Watcher) touched() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !info.ModTime().Equal(w.rev.mtime)
}

// apply reads the file and, if its content differs, swaps it in and runs the
// callback. Callers hold reloadMu.
func (w *Watcher) apply() (bool, error) {
	cfg, rev, err := w.read()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if rev.sum == w.rev.sum {
		w.rev.mtime = rev.mtime
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.rev = cfg, rev
	w.mu.Unlock()

	diff := Diff(old, cfg)
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level_changed", diff.LogLevelChanged,
		"keywords_changed", diff.KeywordsChanged,
	)
	if diff.RestartRequired {
		slog.Warn("config watcher: some changes only take effect after a restart", "path", w.path)
	}
	if w.onChange != nil {
		w.onChange(old, cfg, diff)
	}
	return true, nil
}

// read parses and validates the file and returns it with its revision.
func (w *Watcher) read() (*Config, revision, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, revision{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, revision{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, revision{}, err
	}
	return cfg, revision{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
