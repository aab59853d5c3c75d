package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/humint/internal/config"
	"github.com/MrWong99/humint/pkg/events"
	eventsmock "github.com/MrWong99/humint/pkg/events/mock"
	"github.com/MrWong99/humint/pkg/provider/langid"
	langidmock "github.com/MrWong99/humint/pkg/provider/langid/mock"
	"github.com/MrWong99/humint/pkg/provider/sentiment"
	sentimentmock "github.com/MrWong99/humint/pkg/provider/sentiment/mock"
	"github.com/MrWong99/humint/pkg/provider/stt"
	sttmock "github.com/MrWong99/humint/pkg/provider/stt/mock"
	"github.com/MrWong99/humint/pkg/provider/vad"
	vadmock "github.com/MrWong99/humint/pkg/provider/vad/mock"
)

func TestRegistry_CreateRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterVAD("mock", func(e config.ProviderEntry) (vad.Classifier, error) {
		gotEntry = e
		return &vadmock.Classifier{}, nil
	})
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Transcriber, error) { return &sttmock.Transcriber{}, nil })
	reg.RegisterLangID("mock", func(config.ProviderEntry) (langid.Detector, error) { return &langidmock.Detector{}, nil })
	reg.RegisterSentiment("mock", func(config.ProviderEntry) (sentiment.Scorer, error) { return &sentimentmock.Scorer{}, nil })
	reg.RegisterSink("mock", func(context.Context, config.SinkConfig) (events.Sink, error) { return &eventsmock.Sink{}, nil })

	entry := config.ProviderEntry{Name: "mock", Model: "m"}
	if _, err := reg.CreateVAD(entry); err != nil {
		t.Errorf("CreateVAD: %v", err)
	}
	if gotEntry.Model != "m" {
		t.Errorf("factory got entry %+v", gotEntry)
	}
	if _, err := reg.CreateSTT(entry); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := reg.CreateLangID(entry); err != nil {
		t.Errorf("CreateLangID: %v", err)
	}
	if _, err := reg.CreateSentiment(entry); err != nil {
		t.Errorf("CreateSentiment: %v", err)
	}
	if _, err := reg.CreateSink(context.Background(), config.SinkConfig{Name: "mock"}); err != nil {
		t.Errorf("CreateSink: %v", err)
	}

	names := reg.Names()
	for _, kind := range []string{"vad", "stt", "langid", "sentiment", "sink"} {
		if !slices.Equal(names[kind], []string{"mock"}) {
			t.Errorf("Names()[%s] = %v", kind, names[kind])
		}
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}

	errs := []error{}
	_, err := reg.CreateVAD(entry)
	errs = append(errs, err)
	_, err = reg.CreateSTT(entry)
	errs = append(errs, err)
	_, err = reg.CreateLangID(entry)
	errs = append(errs, err)
	_, err = reg.CreateSentiment(entry)
	errs = append(errs, err)
	_, err = reg.CreateSink(context.Background(), config.SinkConfig{Name: "nope"})
	errs = append(errs, err)

	for i, err := range errs {
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("call %d: err = %v; want ErrProviderNotRegistered", i, err)
		}
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("model file missing")
	reg.RegisterSTT("broken", func(config.ProviderEntry) (stt.Transcriber, error) { return nil, boom })
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "broken"}); !errors.Is(err, boom) {
		t.Errorf("err = %v; want %v", err, boom)
	}
}

func TestRegistry_ReRegisterReplaces(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	first := &sentimentmock.Scorer{Value: 0.1}
	second := &sentimentmock.Scorer{Value: 0.2}
	reg.RegisterSentiment("s", func(config.ProviderEntry) (sentiment.Scorer, error) { return first, nil })
	reg.RegisterSentiment("s", func(config.ProviderEntry) (sentiment.Scorer, error) { return second, nil })
	got, err := reg.CreateSentiment(config.ProviderEntry{Name: "s"})
	if err != nil || got != second {
		t.Errorf("CreateSentiment = %v, %v; want the second registration", got, err)
	}
}
