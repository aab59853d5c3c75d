// Package app wires the humint subsystems into a running service.
//
// The App struct owns the full lifecycle: New builds the pipeline around the
// injected models and sinks, Run drains a chunk source through it with
// bounded concurrency, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations through [Providers] and the
// functional options. When an option is not provided, New falls back to the
// defaults derived from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/humint/internal/capture"
	"github.com/MrWong99/humint/internal/config"
	"github.com/MrWong99/humint/internal/health"
	"github.com/MrWong99/humint/internal/keyword/phonetic"
	"github.com/MrWong99/humint/internal/observe"
	"github.com/MrWong99/humint/internal/pipeline"
	"github.com/MrWong99/humint/internal/resilience"
	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/events"
	"github.com/MrWong99/humint/pkg/provider/langid"
	"github.com/MrWong99/humint/pkg/provider/sentiment"
	"github.com/MrWong99/humint/pkg/provider/stt"
	"github.com/MrWong99/humint/pkg/provider/vad"
)

// Providers holds the long-lived model handles and the configured sinks.
// Populated by main.go via the config registry.
type Providers struct {
	Classifier  vad.Classifier
	Transcriber stt.Transcriber
	Detector    langid.Detector
	Scorer      sentiment.Scorer

	// Sinks receive every event in order.
	Sinks events.MultiSink
}

// Stats counts chunk outcomes since startup.
type Stats struct {
	Chunks  int64
	Stored  int64
	Skipped int64
	Failed  int64
}

// App owns all subsystem lifetimes and drives chunks through the pipeline.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics
	now     func() time.Time

	pipeline    *pipeline.Pipeline
	transcriber *resilience.Transcriber
	sink        *resilience.Sink
	health      *health.Handler
	metricsH    http.Handler
	workers     int

	keywords atomic.Pointer[[]string]

	chunks, stored, skipped, failed atomic.Int64

	serverMu sync.Mutex
	server   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics sets the metrics instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler sets the /metrics handler. Default: the Prometheus
// default registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithCloser registers fn to run during Shutdown, after the built-in
// closers. Used by main to release provider handles.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App for cfg using providers. cfg must have defaults
// applied.
func New(_ context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is nil")
	}
	if providers == nil {
		return nil, errors.New("app: providers are nil")
	}
	if len(providers.Sinks) == 0 {
		return nil, errors.New("app: at least one sink is required")
	}
	if providers.Transcriber == nil {
		return nil, errors.New("app: transcriber is nil")
	}

	a := &App{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsH == nil {
		a.metricsH = promhttp.Handler()
	}

	a.workers = cfg.Pipeline.Workers
	if a.workers <= 0 {
		a.workers = runtime.NumCPU()
	}
	a.SetKeywords(cfg.Keywords)

	breakerCfg := func(name string) resilience.Config {
		return resilience.Config{
			Name:         name,
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		}
	}
	a.transcriber = resilience.NewTranscriber(providers.Transcriber, breakerCfg("stt"))
	a.sink = resilience.NewSink(providers.Sinks, breakerCfg("sink"))

	asmOpts := []pipeline.Option{
		pipeline.WithMetrics(a.metrics),
		pipeline.WithClock(a.now),
		pipeline.WithKeywordMatcher(keywordMatcher(cfg.Pipeline)),
	}
	if cfg.Pipeline.FrameMs > 0 {
		asmOpts = append(asmOpts, pipeline.WithFrameMs(cfg.Pipeline.FrameMs))
	}
	if cfg.Pipeline.FrameRounding == config.RoundingNearest {
		asmOpts = append(asmOpts, pipeline.WithRounding(audio.RoundNearest))
	}
	asm, err := pipeline.NewAssembler(pipeline.Models{
		Classifier:  providers.Classifier,
		Transcriber: a.transcriber,
		Detector:    providers.Detector,
		Scorer:      providers.Scorer,
	}, asmOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.pipeline, err = pipeline.New(asm, a.sink, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	checkers := []health.Checker{
		health.BreakerChecker(a.transcriber.Breaker()),
		health.BreakerChecker(a.sink.Breaker()),
	}
	for _, s := range providers.Sinks {
		if p, ok := s.Sink.(events.Pinger); ok {
			checkers = append(checkers, health.PingChecker("sink:"+s.Name, p))
		}
	}
	a.health = health.New(checkers...)

	// Built-in closers run before those registered with WithCloser.
	builtin := []func() error{a.stopServer}
	for _, s := range providers.Sinks {
		if c := sinkCloser(s.Sink); c != nil {
			builtin = append(builtin, c)
		}
	}
	a.closers = append(builtin, a.closers...)

	slog.Info("pipeline ready",
		"workers", a.workers,
		"frame_ms", cfg.Pipeline.FrameMs,
		"keywords", len(cfg.Keywords),
		"sinks", len(providers.Sinks),
	)
	return a, nil
}

// keywordMatcher builds the matcher selected by cfg. Nil means plain
// substring matching.
func keywordMatcher(cfg config.PipelineConfig) *pipeline.KeywordMatcher {
	if !cfg.DedupKeywords && !cfg.Phonetic.Enabled {
		return nil
	}
	m := &pipeline.KeywordMatcher{Dedup: cfg.DedupKeywords}
	if cfg.Phonetic.Enabled {
		var opts []phonetic.Option
		if cfg.Phonetic.Threshold > 0 {
			opts = append(opts, phonetic.WithThreshold(cfg.Phonetic.Threshold))
		}
		m.Phonetic = phonetic.New(opts...)
	}
	return m
}

// sinkCloser adapts the two Close signatures used by the sinks.
func sinkCloser(s events.Sink) func() error {
	switch c := s.(type) {
	case interface{ Close() error }:
		return c.Close
	case interface{ Close() }:
		return func() error { c.Close(); return nil }
	}
	return nil
}

// Keywords returns the current watch list.
func (a *App) Keywords() []string {
	return *a.keywords.Load()
}

// SetKeywords replaces the watch list. Chunks already in flight keep the
// list they started with.
func (a *App) SetKeywords(keywords []string) {
	kw := slices.Clone(keywords)
	if kw == nil {
		kw = []string{}
	}
	a.keywords.Store(&kw)
}

// ApplyConfig is a [config.ChangeFunc] that applies the hot-reloadable part
// of a config change.
func (a *App) ApplyConfig(_, _ *config.Config, diff config.ConfigDiff) {
	if diff.KeywordsChanged {
		a.SetKeywords(diff.NewKeywords)
		slog.Info("keywords updated",
			"count", len(diff.NewKeywords),
			"added", diff.AddedKeywords,
			"removed", diff.RemovedKeywords,
		)
	}
}

// Stats returns a snapshot of the chunk counters.
func (a *App) Stats() Stats {
	return Stats{
		Chunks:  a.chunks.Load(),
		Stored:  a.stored.Load(),
		Skipped: a.skipped.Load(),
		Failed:  a.failed.Load(),
	}
}

// Handler returns the ops HTTP handler: /healthz, /readyz and /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", a.metricsH)
	return observe.Middleware(a.metrics)(mux)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the ops endpoints and processes chunks from source until it is
// exhausted or ctx is cancelled. A failed chunk is logged and dropped; it
// never stops the loop. Run returns the source's read error, if any.
func (a *App) Run(ctx context.Context, source capture.Source) error {
	if err := a.startServer(); err != nil {
		return err
	}

	chunks, err := source.Chunks(ctx)
	if err != nil {
		return fmt.Errorf("app: start source: %w", err)
	}

	slog.Info("app running", "workers", a.workers)

	var g errgroup.Group
	g.SetLimit(a.workers)
	// A source blocked on input may never close chunks; stop on ctx too.
consume:
	for {
		select {
		case <-ctx.Done():
			break consume
		case chunk, ok := <-chunks:
			if !ok {
				break consume
			}
			g.Go(func() error {
				a.handle(ctx, chunk)
				return nil
			})
		}
	}
	_ = g.Wait()

	st := a.Stats()
	slog.Info("input drained",
		"chunks", st.Chunks,
		"stored", st.Stored,
		"skipped", st.Skipped,
		"failed", st.Failed,
	)

	if e, ok := source.(interface{ Err() error }); ok {
		if err := e.Err(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// handle processes one chunk. Errors are contained here.
func (a *App) handle(ctx context.Context, chunk pipeline.Chunk) {
	a.chunks.Add(1)
	log := observe.Logger(ctx, "chunk_id", chunk.ID)

	outcome, err := a.pipeline.Process(ctx, chunk, a.Keywords())
	switch {
	case err == nil && outcome == pipeline.OutcomeStored:
		a.stored.Add(1)
		log.Debug("event stored", "duration_ms", chunk.DurationMs())
	case err == nil:
		a.skipped.Add(1)
		log.Debug("no speech", "duration_ms", chunk.DurationMs())
	case errors.Is(err, context.Canceled):
		a.failed.Add(1)
		log.Debug("chunk abandoned", "stage", pipeline.StageOf(err))
	default:
		a.failed.Add(1)
		log.Warn("chunk dropped", "stage", pipeline.StageOf(err), "err", err)
	}
}

// ─── Ops server ──────────────────────────────────────────────────────────────

func (a *App) startServer() error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.serverMu.Lock()
	a.server = srv
	a.serverMu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops server error", "err", err)
		}
	}()
	slog.Info("ops server listening", "addr", ln.Addr().String())
	return nil
}

func (a *App) stopServer() error {
	a.serverMu.Lock()
	srv := a.server
	a.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the ops server and closes the sinks, then runs the closers
// registered with [WithCloser]. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
