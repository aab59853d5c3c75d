package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MrWong99/humint/pkg/events"
	"github.com/MrWong99/humint/pkg/events/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := sqlite.Open(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ReadsLegacyRows(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:legacy-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	s, err := sqlite.New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Rows as written by isoformat(): no zone, fraction omitted when zero.
	for _, row := range [][]string{
		{"2024-05-01T12:00:00.123456", "border crossing", "en", "alert,border", "-0.25"},
		{"2024-05-01T12:00:05", "all clear", "en", "", "0.0"},
	} {
		err := db.Exec(`INSERT INTO speech_events (timestamp, transcript, language, keywords, sentiment)
			VALUES (?, ?, ?, ?, ?)`, row[0], row[1], row[2], row[3], row[4]).Error
		if err != nil {
			t.Fatalf("raw insert: %v", err)
		}
	}
	if err := s.Write(ctx, event(10*time.Second, "new row", "alert")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	recs, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records; want 3", len(recs))
	}
	wantTimes := []time.Time{
		time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC),
		time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC),
		time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC),
	}
	for i, want := range wantTimes {
		if got := recs[i].Event.Timestamp; !got.Equal(want) {
			t.Errorf("record %d timestamp = %v; want %v", i, got, want)
		}
	}
	if kw := recs[1].Event.Keywords; kw == nil || len(kw) != 0 {
		t.Errorf("empty legacy keywords = %#v; want empty slice", kw)
	}

	hits, err := s.ByKeyword(ctx, "border", 10)
	if err != nil {
		t.Fatalf("ByKeyword: %v", err)
	}
	if len(hits) != 1 || hits[0].Event.Sentiment != -0.25 {
		t.Errorf("ByKeyword(border) = %+v", hits)
	}
}

func event(offset time.Duration, transcript string, kw ...string) events.SpeechEvent {
	if kw == nil {
		kw = []string{}
	}
	return events.SpeechEvent{
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(offset),
		Transcript: transcript,
		Language:   "en",
		Keywords:   kw,
		Sentiment:  0.4215,
	}
}

func TestStore_WriteAndRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, ev := range []events.SpeechEvent{
		event(0, "first", "alpha"),
		event(time.Second, "second"),
		event(2*time.Second, "third", "alpha", "beta"),
	} {
		if err := s.Write(ctx, ev); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	recs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records; want 2", len(recs))
	}
	if recs[0].Event.Transcript != "third" || recs[1].Event.Transcript != "second" {
		t.Errorf("order = %q, %q; want newest first", recs[0].Event.Transcript, recs[1].Event.Transcript)
	}
	got := recs[0].Event
	if got.Sentiment != 0.4215 || got.Language != "en" || len(got.Keywords) != 2 || got.Keywords[1] != "beta" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(event(2*time.Second, "").Timestamp) {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
	if recs[1].Event.Keywords == nil || len(recs[1].Event.Keywords) != 0 {
		t.Errorf("empty keywords should read back as empty slice, got %#v", recs[1].Event.Keywords)
	}
}

func TestStore_ByKeyword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	writes := []events.SpeechEvent{
		event(0, "a", "alpha"),
		event(time.Second, "b", "alphabet"),
		event(2*time.Second, "c", "beta", "alpha"),
		event(3*time.Second, "d", "50%_off"),
	}
	for _, ev := range writes {
		if err := s.Write(ctx, ev); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	recs, err := s.ByKeyword(ctx, "alpha", 10)
	if err != nil {
		t.Fatalf("ByKeyword: %v", err)
	}
	if len(recs) != 2 || recs[0].Event.Transcript != "c" || recs[1].Event.Transcript != "a" {
		t.Errorf("ByKeyword(alpha) = %+v; want c then a", recs)
	}

	if recs, _ := s.ByKeyword(ctx, "alpha", 1); len(recs) != 1 {
		t.Errorf("limit not applied: %d records", len(recs))
	}
	if recs, _ := s.ByKeyword(ctx, "50%_off", 10); len(recs) != 1 {
		t.Errorf("LIKE metacharacters not escaped: %d records", len(recs))
	}
	if recs, _ := s.ByKeyword(ctx, "", 10); len(recs) != 0 {
		t.Errorf("empty keyword matched %d records", len(recs))
	}
}

func TestStore_Ping(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	if _, err := sqlite.Open(""); err == nil {
		t.Error("expected error for empty dsn")
	}
}
