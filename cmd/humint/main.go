// Command humint listens to a PCM stream, keeps the chunks that contain
// speech, and records a transcript, language, keyword matches and sentiment
// for each of them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrWong99/humint/internal/app"
	"github.com/MrWong99/humint/internal/capture"
	"github.com/MrWong99/humint/internal/config"
	"github.com/MrWong99/humint/internal/observe"
	"github.com/MrWong99/humint/pkg/audio"
	"github.com/MrWong99/humint/pkg/events"
	"github.com/MrWong99/humint/pkg/events/postgres"
	"github.com/MrWong99/humint/pkg/events/redisstream"
	"github.com/MrWong99/humint/pkg/events/sqlite"
	"github.com/MrWong99/humint/pkg/provider/langid"
	"github.com/MrWong99/humint/pkg/provider/langid/lingua"
	"github.com/MrWong99/humint/pkg/provider/sentiment"
	"github.com/MrWong99/humint/pkg/provider/sentiment/vader"
	"github.com/MrWong99/humint/pkg/provider/stt"
	"github.com/MrWong99/humint/pkg/provider/stt/openai"
	"github.com/MrWong99/humint/pkg/provider/stt/whisper"
	"github.com/MrWong99/humint/pkg/provider/vad"
	"github.com/MrWong99/humint/pkg/provider/vad/energy"
	"github.com/MrWong99/humint/pkg/provider/vad/webrtc"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listEvents := flag.Int("events", 0, "print the N most recent stored events as JSON lines and exit")
	keyword := flag.String("keyword", "", "with -events, only print events that matched this keyword")
	flag.Parse()

	// A missing .env is fine; secrets may come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "humint: .env: %v\n", err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "humint: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "humint: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Audio.SampleRate)
	for kind, names := range reg.Names() {
		slog.Debug("registered providers", "kind", kind, "names", names)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, err := buildSinks(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to open sinks", "err", err)
		return 1
	}

	if *listEvents > 0 {
		defer closeSinks(sinks)
		if err := printEvents(ctx, os.Stdout, sinks, *keyword, *listEvents); err != nil {
			slog.Error("failed to read events", "err", err)
			return 1
		}
		return 0
	}

	slog.Info("humint starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	var startup cleanup
	startup.add("sinks", func() error { closeSinks(sinks); return nil })

	tel, err := observe.Init(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		_ = startup.run()
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	shutdownTelemetry := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tel.Shutdown(ctx)
	}
	startup.add("telemetry", shutdownTelemetry)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, closers, err := buildProviders(cfg, reg)
	if err != nil {
		_ = startup.run()
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	providers.Sinks = sinks

	opts := []app.Option{app.WithMetricsHandler(tel.MetricsHandler())}
	for _, c := range closers {
		opts = append(opts, app.WithCloser(c))
		startup.add("provider", c)
	}
	opts = append(opts, app.WithCloser(shutdownTelemetry))

	application, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		_ = startup.run()
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	// From here on the application owns every resource and Shutdown releases them.

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config, diff config.ConfigDiff) {
		if diff.LogLevelChanged {
			level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		application.ApplyConfig(old, new, diff)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					if _, err := watcher.Reload(); err != nil {
						slog.Warn("SIGHUP reload failed, keeping previous config", "err", err)
					}
				}
			}
		}()
	}

	// ── Input ─────────────────────────────────────────────────────────────────
	source, err := capture.Open(cfg.Audio.SourcePath,
		audio.Format{SampleRate: cfg.Audio.InputRate, Channels: cfg.Audio.Channels},
		cfg.Audio.SampleRate,
		capture.WithChunkMs(cfg.Capture.ChunkMs),
	)
	if err != nil {
		_ = application.Shutdown(context.Background())
		slog.Error("failed to open audio source", "err", err)
		return 1
	}
	defer source.Close()

	slog.Info("listening", "source", sourceName(cfg.Audio.SourcePath), "chunk_ms", cfg.Capture.ChunkMs)

	code := 0
	if err := application.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in factories into reg. sampleRate
// is the rate chunks reach the transcriber at.
func registerBuiltinProviders(reg *config.Registry, sampleRate int) {
	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("webrtc", func(entry config.ProviderEntry) (vad.Classifier, error) {
		return webrtc.New(
			webrtc.WithMode(config.OptionInt(entry.Options, "mode", webrtc.DefaultMode)),
			webrtc.WithPoolSize(config.OptionInt(entry.Options, "pool_size", 0)),
		)
	})

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Classifier, error) {
		return energy.New(config.OptionFloat(entry.Options, "threshold", 0)), nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		opts := []whisper.Option{whisper.WithSampleRate(sampleRate)}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = config.OptionString(entry.Options, "model_path", "")
		}
		opts := []whisper.NativeOption{
			whisper.WithNativeConcurrency(config.OptionInt(entry.Options, "concurrency", 0)),
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(entry.Language))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		opts := []openai.Option{openai.WithSampleRate(sampleRate)}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Language != "" {
			opts = append(opts, openai.WithLanguage(entry.Language))
		}
		if d := config.OptionInt(entry.Options, "timeout_seconds", 0); d > 0 {
			opts = append(opts, openai.WithTimeout(time.Duration(d)*time.Second))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Language ──────────────────────────────────────────────────────────────

	reg.RegisterLangID("lingua", func(entry config.ProviderEntry) (langid.Detector, error) {
		var opts []lingua.Option
		if langs := config.OptionStrings(entry.Options, "languages"); len(langs) > 0 {
			opts = append(opts, lingua.WithLanguages(langs...))
		}
		if d := config.OptionFloat(entry.Options, "min_distance", 0); d > 0 {
			opts = append(opts, lingua.WithMinimumRelativeDistance(d))
		}
		if config.OptionBool(entry.Options, "low_accuracy", false) {
			opts = append(opts, lingua.WithLowAccuracyMode())
		}
		return lingua.New(opts...)
	})

	// ── Sentiment ─────────────────────────────────────────────────────────────

	reg.RegisterSentiment("vader", func(config.ProviderEntry) (sentiment.Scorer, error) {
		return vader.New(), nil
	})

	// ── Sinks ─────────────────────────────────────────────────────────────────

	reg.RegisterSink("sqlite", func(_ context.Context, sc config.SinkConfig) (events.Sink, error) {
		return sqlite.Open(sc.DSN)
	})

	reg.RegisterSink("postgres", func(ctx context.Context, sc config.SinkConfig) (events.Sink, error) {
		return postgres.NewStore(ctx, sc.DSN)
	})

	reg.RegisterSink("redis", func(ctx context.Context, sc config.SinkConfig) (events.Sink, error) {
		return redisstream.New(ctx, redisstream.Config{
			Addr:     sc.Addr,
			Username: config.OptionString(sc.Options, "username", ""),
			Password: sc.Password,
			DB:       config.OptionInt(sc.Options, "db", 0),
			Stream:   config.OptionString(sc.Options, "stream", ""),
			MaxLen:   int64(config.OptionInt(sc.Options, "max_len", 0)),
		})
	})
}

// buildProviders instantiates the models named in cfg. The returned closers
// release native resources and must run at shutdown.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, []func() error, error) {
	ps := &app.Providers{}
	var closers []func() error
	track := func(kind, name string, p any) {
		if c, ok := p.(io.Closer); ok {
			closers = append(closers, c.Close)
		}
		slog.Info("provider created", "kind", kind, "name", name)
	}
	fail := func(kind, name string, err error) (*app.Providers, []func() error, error) {
		for _, c := range closers {
			_ = c()
		}
		return nil, nil, fmt.Errorf("create %s provider %q: %w", kind, name, err)
	}

	var err error
	if ps.Classifier, err = reg.CreateVAD(cfg.Providers.VAD); err != nil {
		return fail("vad", cfg.Providers.VAD.Name, err)
	}
	track("vad", cfg.Providers.VAD.Name, ps.Classifier)

	if ps.Transcriber, err = reg.CreateSTT(cfg.Providers.STT); err != nil {
		return fail("stt", cfg.Providers.STT.Name, err)
	}
	track("stt", cfg.Providers.STT.Name, ps.Transcriber)

	if ps.Detector, err = reg.CreateLangID(cfg.Providers.LangID); err != nil {
		return fail("langid", cfg.Providers.LangID.Name, err)
	}
	track("langid", cfg.Providers.LangID.Name, ps.Detector)

	if ps.Scorer, err = reg.CreateSentiment(cfg.Providers.Sentiment); err != nil {
		return fail("sentiment", cfg.Providers.Sentiment.Name, err)
	}
	track("sentiment", cfg.Providers.Sentiment.Name, ps.Scorer)

	return ps, closers, nil
}

// buildSinks opens every configured sink in order.
func buildSinks(ctx context.Context, cfg *config.Config, reg *config.Registry) (events.MultiSink, error) {
	sinks := make(events.MultiSink, 0, len(cfg.Sinks))
	for _, sc := range cfg.Sinks {
		s, err := reg.CreateSink(ctx, sc)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("open sink %q: %w", sc.Name, err)
		}
		sinks = append(sinks, events.NamedSink{Name: sc.Name, Sink: s})
		slog.Info("sink opened", "name", sc.Name)
	}
	return sinks, nil
}

func closeSinks(sinks events.MultiSink) {
	for _, s := range sinks {
		switch c := s.Sink.(type) {
		case interface{ Close() error }:
			if err := c.Close(); err != nil {
				slog.Warn("sink close error", "name", s.Name, "err", err)
			}
		case interface{ Close() }:
			c.Close()
		}
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sourceName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}
