package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per kind. Used by [Validate]
// to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"vad":       {"webrtc", "energy"},
	"stt":       {"whisper", "whisper-native", "openai"},
	"langid":    {"lingua"},
	"sentiment": {"vader"},
	"sink":      {"sqlite", "postgres", "redis"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references in secrets, applies defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.expandSecrets()
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets replaces ${VAR} references in api keys and passwords.
func (c *Config) expandSecrets() {
	for _, p := range []*ProviderEntry{&c.Providers.VAD, &c.Providers.STT, &c.Providers.LangID, &c.Providers.Sentiment} {
		p.APIKey = os.ExpandEnv(p.APIKey)
	}
	for i := range c.Sinks {
		c.Sinks[i].Password = os.ExpandEnv(c.Sinks[i].Password)
		c.Sinks[i].DSN = os.ExpandEnv(c.Sinks[i].DSN)
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found. Validate expects defaults to have
// been applied.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.InputRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.input_rate %d must be positive", cfg.Audio.InputRate))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}

	// Capture
	if cfg.Capture.ChunkMs <= 0 {
		errs = append(errs, fmt.Errorf("capture.chunk_ms %d must be positive", cfg.Capture.ChunkMs))
	}

	// Pipeline
	switch cfg.Pipeline.FrameMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("pipeline.frame_ms %d is invalid; valid values: 10, 20, 30", cfg.Pipeline.FrameMs))
	}
	if !cfg.Pipeline.FrameRounding.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.frame_rounding %q is invalid; valid values: floor, nearest", cfg.Pipeline.FrameRounding))
	}
	if cfg.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers %d must not be negative", cfg.Pipeline.Workers))
	}
	if t := cfg.Pipeline.Phonetic.Threshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("pipeline.phonetic.threshold %.2f is out of range [0, 1]", t))
	}
	if cfg.Capture.ChunkMs > 0 && cfg.Pipeline.FrameMs > 0 && cfg.Capture.ChunkMs < cfg.Pipeline.FrameMs {
		slog.Warn("capture.chunk_ms is shorter than one frame; no chunk will ever contain speech",
			"chunk_ms", cfg.Capture.ChunkMs, "frame_ms", cfg.Pipeline.FrameMs)
	}

	// Keywords
	errs = append(errs, validateKeywords(cfg.Keywords)...)

	// Providers
	for kind, entry := range map[string]ProviderEntry{
		"vad":       cfg.Providers.VAD,
		"stt":       cfg.Providers.STT,
		"langid":    cfg.Providers.LangID,
		"sentiment": cfg.Providers.Sentiment,
	} {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.name is required", kind))
			continue
		}
		validateProviderName(kind, entry.Name)
	}

	// Sinks
	if len(cfg.Sinks) == 0 {
		errs = append(errs, errors.New("sinks: at least one sink is required"))
	}
	seen := make(map[string]int, len(cfg.Sinks))
	for i, s := range cfg.Sinks {
		prefix := fmt.Sprintf("sinks[%d]", i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[s.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of sinks[%d]", prefix, s.Name, prev))
		}
		seen[s.Name] = i
		validateProviderName("sink", s.Name)
		switch s.Name {
		case "sqlite", "postgres":
			if s.DSN == "" {
				errs = append(errs, fmt.Errorf("%s.dsn is required for %s", prefix, s.Name))
			}
		case "redis":
			if s.Addr == "" {
				errs = append(errs, fmt.Errorf("%s.addr is required for redis", prefix))
			}
		}
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must not be negative", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout %s must not be negative", cfg.Resilience.ResetTimeout))
	}

	return errors.Join(errs...)
}

// validateKeywords rejects blank entries, which would match every transcript.
func validateKeywords(keywords []string) []error {
	var errs []error
	for i, k := range keywords {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, fmt.Errorf("keywords[%d] is empty", i))
		}
	}
	if len(keywords) == 0 {
		slog.Warn("keywords list is empty; events will carry no keyword matches")
	}
	return errs
}

// validateProviderName logs a warning if name is not in
// [ValidProviderNames] for kind.
func validateProviderName(kind, name string) {
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
