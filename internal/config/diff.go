package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Only fields that
// can be applied without a restart are tracked; everything else needs one.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	KeywordsChanged bool
	NewKeywords     []string
	AddedKeywords   []string
	RemovedKeywords []string

	// RestartRequired is set when a field outside the hot-reloadable set
	// changed. The new value is ignored until restart.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Keywords, new.Keywords) {
		d.KeywordsChanged = true
		d.NewKeywords = slices.Clone([]string(new.Keywords))
		d.AddedKeywords = missingFrom(new.Keywords, old.Keywords)
		d.RemovedKeywords = missingFrom(old.Keywords, new.Keywords)
	}

	d.RestartRequired = old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Audio != new.Audio ||
		old.Capture != new.Capture ||
		old.Pipeline != new.Pipeline ||
		old.Resilience != new.Resilience ||
		!providersEqual(old.Providers, new.Providers) ||
		!sinksEqual(old.Sinks, new.Sinks)

	return d
}

// missingFrom returns the entries of a that do not occur in b, in a's order.
func missingFrom(a, b []string) []string {
	var out []string
	for _, k := range a {
		if !slices.Contains(b, k) {
			out = append(out, k)
		}
	}
	return out
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.VAD, b.VAD) &&
		entryEqual(a.STT, b.STT) &&
		entryEqual(a.LangID, b.LangID) &&
		entryEqual(a.Sentiment, b.Sentiment)
}

func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && a.Language == b.Language && reflect.DeepEqual(a.Options, b.Options)
}

func sinksEqual(a, b []SinkConfig) bool {
	return slices.EqualFunc(a, b, func(x, y SinkConfig) bool {
		return x.Name == y.Name && x.DSN == y.DSN && x.Addr == y.Addr &&
			x.Password == y.Password && reflect.DeepEqual(x.Options, y.Options)
	})
}
