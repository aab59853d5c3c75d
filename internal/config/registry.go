package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/humint/pkg/events"
	"github.com/MrWong99/humint/pkg/provider/langid"
	"github.com/MrWong99/humint/pkg/provider/sentiment"
	"github.com/MrWong99/humint/pkg/provider/stt"
	"github.com/MrWong99/humint/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// SinkFactory opens a sink. ctx bounds connection setup only.
type SinkFactory func(ctx context.Context, cfg SinkConfig) (events.Sink, error)

// Registry maps provider names to their constructors for each capability.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	vad       map[string]func(ProviderEntry) (vad.Classifier, error)
	stt       map[string]func(ProviderEntry) (stt.Transcriber, error)
	langid    map[string]func(ProviderEntry) (langid.Detector, error)
	sentiment map[string]func(ProviderEntry) (sentiment.Scorer, error)
	sinks     map[string]SinkFactory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad:       make(map[string]func(ProviderEntry) (vad.Classifier, error)),
		stt:       make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		langid:    make(map[string]func(ProviderEntry) (langid.Detector, error)),
		sentiment: make(map[string]func(ProviderEntry) (sentiment.Scorer, error)),
		sinks:     make(map[string]SinkFactory),
	}
}

// RegisterVAD registers a speech classifier factory under name. A later
// registration with the same name replaces the earlier one.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterLangID registers a language detector factory under name.
func (r *Registry) RegisterLangID(name string, factory func(ProviderEntry) (langid.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langid[name] = factory
}

// RegisterSentiment registers a sentiment scorer factory under name.
func (r *Registry) RegisterSentiment(name string, factory func(ProviderEntry) (sentiment.Scorer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sentiment[name] = factory
}

// RegisterSink registers a sink factory under name.
func (r *Registry) RegisterSink(name string, factory SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = factory
}

// CreateVAD builds the classifier registered under entry.Name.
// Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT builds the transcriber registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLangID builds the language detector registered under entry.Name.
func (r *Registry) CreateLangID(entry ProviderEntry) (langid.Detector, error) {
	r.mu.RLock()
	factory, ok := r.langid[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: langid/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSentiment builds the sentiment scorer registered under entry.Name.
func (r *Registry) CreateSentiment(entry ProviderEntry) (sentiment.Scorer, error) {
	r.mu.RLock()
	factory, ok := r.sentiment[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sentiment/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSink opens the sink registered under cfg.Name.
func (r *Registry) CreateSink(ctx context.Context, cfg SinkConfig) (events.Sink, error) {
	r.mu.RLock()
	factory, ok := r.sinks[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sink/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(ctx, cfg)
}

// Names returns the registered names per kind, sorted, for startup logging.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		"vad":       slices.Sorted(maps.Keys(r.vad)),
		"stt":       slices.Sorted(maps.Keys(r.stt)),
		"langid":    slices.Sorted(maps.Keys(r.langid)),
		"sentiment": slices.Sorted(maps.Keys(r.sentiment)),
		"sink":      slices.Sorted(maps.Keys(r.sinks)),
	}
}
