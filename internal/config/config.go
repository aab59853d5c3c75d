// Package config provides the configuration schema, loader, and provider
// registry for humint.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Rounding selects how per-frame sample counts are derived.
type Rounding string

const (
	RoundingFloor   Rounding = "floor"
	RoundingNearest Rounding = "nearest"
)

// IsValid reports whether r is a recognised rounding mode.
func (r Rounding) IsValid() bool {
	return r == RoundingFloor || r == RoundingNearest
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr   = ":9090"
	DefaultSampleRate   = 16000
	DefaultChunkMs      = 3000
	DefaultFrameMs      = 30
	DefaultMaxFailures  = 5
	DefaultResetTimeout = 30 * time.Second
)

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Capture    CaptureConfig    `yaml:"capture"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Keywords   KeywordList      `yaml:"keywords"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Sinks      []SinkConfig     `yaml:"sinks"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds the ops HTTP server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the ops server (/healthz, /readyz,
	// /metrics). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the PCM the pipeline works on and where it comes
// from.
type AudioConfig struct {
	// SampleRate is the rate chunks are handed to the pipeline at.
	// Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// SourcePath is the raw s16le PCM input. "-" or empty reads stdin; a FIFO
	// works as well.
	SourcePath string `yaml:"source_path"`

	// InputRate is the rate of the data at SourcePath. Zero means SampleRate.
	InputRate int `yaml:"input_rate"`

	// Channels of the input: 1 or 2. Stereo is down-mixed. Default: 1.
	Channels int `yaml:"channels"`
}

// CaptureConfig controls how the input stream is cut into chunks.
type CaptureConfig struct {
	// ChunkMs is the duration of one chunk. Default: 3000.
	ChunkMs int `yaml:"chunk_ms"`
}

// PipelineConfig tunes the gate and event assembly.
type PipelineConfig struct {
	// FrameMs is the classifier frame duration: 10, 20 or 30. Default: 30.
	FrameMs int `yaml:"frame_ms"`

	// FrameRounding is "floor" (default) or "nearest".
	FrameRounding Rounding `yaml:"frame_rounding"`

	// Workers bounds how many chunks are processed at once. Zero means one
	// per CPU.
	Workers int `yaml:"workers"`

	// DedupKeywords reports each matched keyword once.
	DedupKeywords bool `yaml:"dedup_keywords"`

	// Phonetic enables fuzzy keyword matching for transcription errors.
	Phonetic PhoneticConfig `yaml:"phonetic"`
}

// PhoneticConfig configures the phonetic keyword fallback.
type PhoneticConfig struct {
	Enabled bool `yaml:"enabled"`

	// Threshold is the minimum Jaro-Winkler similarity in (0, 1].
	// Zero selects the matcher's default.
	Threshold float64 `yaml:"threshold"`
}

// KeywordList is the watch list of keywords. In YAML it may be a sequence or
// a single comma-separated string.
type KeywordList []string

// UnmarshalYAML accepts both `[a, b]` and `"a,b"`.
func (k *KeywordList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		var out KeywordList
		for part := range strings.SplitSeq(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*k = out
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*k = list
		return nil
	default:
		return fmt.Errorf("keywords: expected a list or comma-separated string, got %s", kindName(node.Kind))
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "node"
	}
}

// ProvidersConfig selects an implementation for each capability. Each entry
// names a provider registered in the [Registry].
type ProvidersConfig struct {
	VAD       ProviderEntry `yaml:"vad"`
	STT       ProviderEntry `yaml:"stt"`
	LangID    ProviderEntry `yaml:"langid"`
	Sentiment ProviderEntry `yaml:"sentiment"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
// Name is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "webrtc", "whisper").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted providers. "${VAR}" references are
	// expanded from the environment at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's endpoint (e.g. a whisper.cpp server).
	BaseURL string `yaml:"base_url"`

	// Model selects a model or, for native engines, a model file path.
	Model string `yaml:"model"`

	// Language hints the expected spoken language where supported.
	Language string `yaml:"language"`

	// Options holds provider-specific values.
	Options map[string]any `yaml:"options"`
}

// SinkConfig configures one event sink. Events are written to every
// configured sink in order.
type SinkConfig struct {
	// Name selects the registered sink ("sqlite", "postgres", "redis").
	Name string `yaml:"name"`

	// DSN is the database connection string for SQL sinks.
	DSN string `yaml:"dsn"`

	// Addr is the host:port of network sinks such as redis.
	Addr string `yaml:"addr"`

	// Password authenticates against network sinks. "${VAR}" is expanded.
	Password string `yaml:"password"`

	// Options holds sink-specific values (e.g. stream, max_len).
	Options map[string]any `yaml:"options"`
}

// ResilienceConfig tunes the circuit breakers around the transcriber and the
// sink.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive failures that opens a
	// breaker. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open breaker rejects calls. Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}
	if c.Audio.InputRate == 0 {
		c.Audio.InputRate = c.Audio.SampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Capture.ChunkMs == 0 {
		c.Capture.ChunkMs = DefaultChunkMs
	}
	if c.Pipeline.FrameMs == 0 {
		c.Pipeline.FrameMs = DefaultFrameMs
	}
	if c.Pipeline.FrameRounding == "" {
		c.Pipeline.FrameRounding = RoundingFloor
	}
	if c.Resilience.MaxFailures == 0 {
		c.Resilience.MaxFailures = DefaultMaxFailures
	}
	if c.Resilience.ResetTimeout == 0 {
		c.Resilience.ResetTimeout = DefaultResetTimeout
	}
}

// OptionString returns Options[key] as a string, or def when absent or not a
// string.
func OptionString(opts map[string]any, key, def string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return def
}

// OptionInt returns Options[key] as an int, or def when absent. YAML numbers
// decode as int or float64; both are accepted.
func OptionInt(opts map[string]any, key string, def int) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// OptionFloat returns Options[key] as a float64, or def when absent.
func OptionFloat(opts map[string]any, key string, def float64) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// OptionBool returns Options[key] as a bool, or def when absent.
func OptionBool(opts map[string]any, key string, def bool) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return def
}

// OptionStrings returns Options[key] as a string slice, or nil.
func OptionStrings(opts map[string]any, key string) []string {
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
