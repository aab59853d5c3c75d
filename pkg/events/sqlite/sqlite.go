// Package sqlite provides an events.Store backed by SQLite through gorm.
//
// The table layout is the flat speech_events table the capture host has
// always written: ISO-8601 timestamp text, comma-joined keywords and the
// sentiment score as text.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MrWong99/humint/pkg/events"
)

// Compile-time interface checks.
var (
	_ events.Store  = (*Store)(nil)
	_ events.Pinger = (*Store)(nil)
)

// speechEventRow is the gorm model for the speech_events table.
type speechEventRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Timestamp  string `gorm:"type:TEXT;index:idx_timestamp"`
	Transcript string `gorm:"type:TEXT"`
	Language   string `gorm:"type:TEXT"`
	Keywords   string `gorm:"type:TEXT;index:idx_keywords"`
	Sentiment  string `gorm:"type:TEXT"`
}

func (speechEventRow) TableName() string { return "speech_events" }

// Store writes events to a SQLite database. Safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at dsn and migrates
// the schema. dsn is anything the sqlite driver accepts, e.g. a file path or
// "file:events?mode=memory&cache=shared".
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite store: dsn must not be empty")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	s, err := New(db)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlite store: requires database handle")
	}
	if err := db.AutoMigrate(&speechEventRow{}); err != nil {
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Write implements events.Sink.
func (s *Store) Write(ctx context.Context, ev events.SpeechEvent) error {
	row := speechEventRow{
		Timestamp:  ev.TimestampString(),
		Transcript: ev.Transcript,
		Language:   ev.Language,
		Keywords:   ev.KeywordsString(),
		Sentiment:  ev.SentimentString(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlite store: insert: %w", err)
	}
	return nil
}

// Recent implements events.Store. A non-positive limit returns every event.
func (s *Store) Recent(ctx context.Context, limit int) ([]events.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []speechEventRow
	err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite store: recent: %w", err)
	}
	return toRecords(rows, "")
}

// ByKeyword implements events.Store. The LIKE prefilter uses the keywords
// index; exact membership is checked after decoding.
func (s *Store) ByKeyword(ctx context.Context, keyword string, limit int) ([]events.Record, error) {
	if keyword == "" {
		return []events.Record{}, nil
	}
	var rows []speechEventRow
	err := s.db.WithContext(ctx).
		Where("keywords LIKE ? ESCAPE '\\'", "%"+escapeLike(keyword)+"%").
		Order("timestamp DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite store: by keyword: %w", err)
	}
	recs, err := toRecords(rows, keyword)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Ping implements events.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite store: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite store: %w", err)
	}
	return sqlDB.Close()
}

func toRecords(rows []speechEventRow, keyword string) ([]events.Record, error) {
	out := make([]events.Record, 0, len(rows))
	for _, r := range rows {
		ts, err := events.ParseTimestamp(r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: row %d: timestamp: %w", r.ID, err)
		}
		sentiment, err := strconv.ParseFloat(r.Sentiment, 64)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: row %d: sentiment: %w", r.ID, err)
		}
		ev := events.SpeechEvent{
			Timestamp:  ts,
			Transcript: r.Transcript,
			Language:   r.Language,
			Keywords:   events.ParseKeywords(r.Keywords),
			Sentiment:  sentiment,
		}
		if keyword != "" && !ev.ContainsKeyword(keyword) {
			continue
		}
		out = append(out, events.Record{ID: r.ID, Event: ev})
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
