// Package postgres provides an events.Store backed by PostgreSQL via a
// [pgxpool.Pool].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Write(ctx, ev)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/humint/pkg/events"
)

// Compile-time interface checks.
var (
	_ events.Store  = (*Store)(nil)
	_ events.Pinger = (*Store)(nil)
)

// Store persists speech events in PostgreSQL. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies connectivity, and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Write implements events.Sink.
func (s *Store) Write(ctx context.Context, ev events.SpeechEvent) error {
	const q = `
		INSERT INTO speech_events
		    (timestamp, recorded_at, transcript, language, keywords, sentiment)
		VALUES ($1, $2, $3, $4, $5, $6)`

	kw := ev.Keywords
	if kw == nil {
		kw = []string{}
	}
	_, err := s.pool.Exec(ctx, q,
		ev.TimestampString(),
		ev.Timestamp.UTC(),
		ev.Transcript,
		ev.Language,
		kw,
		ev.Sentiment,
	)
	if err != nil {
		return fmt.Errorf("postgres store: insert: %w", err)
	}
	return nil
}

// Recent implements events.Store. A non-positive limit returns every event.
func (s *Store) Recent(ctx context.Context, limit int) ([]events.Record, error) {
	const q = `
		SELECT id, recorded_at, transcript, language, keywords, sentiment
		FROM   speech_events
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, nullableLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent: %w", err)
	}
	return collectRecords(rows)
}

// ByKeyword implements events.Store.
func (s *Store) ByKeyword(ctx context.Context, keyword string, limit int) ([]events.Record, error) {
	const q = `
		SELECT id, recorded_at, transcript, language, keywords, sentiment
		FROM   speech_events
		WHERE  keywords @> ARRAY[$1]::text[]
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, keyword, nullableLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres store: by keyword: %w", err)
	}
	return collectRecords(rows)
}

// Ping implements events.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// nullableLimit maps a non-positive limit to SQL NULL, which LIMIT treats as
// "no limit".
func nullableLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func collectRecords(rows pgx.Rows) ([]events.Record, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.Record, error) {
		var r events.Record
		err := row.Scan(
			&r.ID,
			&r.Event.Timestamp,
			&r.Event.Transcript,
			&r.Event.Language,
			&r.Event.Keywords,
			&r.Event.Sentiment,
		)
		r.Event.Timestamp = r.Event.Timestamp.UTC()
		if r.Event.Keywords == nil {
			r.Event.Keywords = []string{}
		}
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan: %w", err)
	}
	return out, nil
}
