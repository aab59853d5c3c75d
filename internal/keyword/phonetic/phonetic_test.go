package phonetic_test

import (
	"testing"

	"github.com/MrWong99/humint/internal/keyword/phonetic"
)

func TestMatcher_Find(t *testing.T) {
	t.Parallel()
	m := phonetic.New()

	tests := []struct {
		name    string
		text    string
		keyword string
		want    bool
	}{
		{"exact word", "the shipment is late", "shipment", true},
		{"misspelled word", "the shipmint is late", "shipment", true},
		{"punctuation around word", "Shipmint, late again.", "shipment", true},
		{"multi-word keyword", "meet me at the river side tonight", "riverside", false},
		{"multi-word misspelled", "we go to the centrel station now", "central station", true},
		{"unrelated", "the weather is nice", "shipment", false},
		{"keyword longer than text", "hi", "central station", false},
		{"empty keyword", "anything", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			score, got := m.Find(tt.text, tt.keyword)
			if got != tt.want {
				t.Errorf("Find(%q, %q) = (%f, %v); want %v", tt.text, tt.keyword, score, got, tt.want)
			}
			if got && score < m.Threshold() {
				t.Errorf("found with score %f below threshold %f", score, m.Threshold())
			}
		})
	}
}

func TestMatcher_WithThreshold(t *testing.T) {
	t.Parallel()
	strict := phonetic.New(phonetic.WithThreshold(0.999))
	if _, found := strict.Find("the shipmint is late", "shipment"); found {
		t.Error("near-miss should not pass a 0.999 threshold")
	}
	if _, found := strict.Find("the shipment is late", "shipment"); !found {
		t.Error("exact word should pass any threshold up to 1")
	}
}
