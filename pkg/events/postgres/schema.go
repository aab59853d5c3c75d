package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlSpeechEvents keeps the ISO-8601 timestamp text of the SQLite layout and
// adds a TIMESTAMPTZ copy for range queries and ordering.
const ddlSpeechEvents = `
CREATE TABLE IF NOT EXISTS speech_events (
    id           BIGSERIAL         PRIMARY KEY,
    timestamp    TEXT              NOT NULL,
    recorded_at  TIMESTAMPTZ       NOT NULL,
    transcript   TEXT              NOT NULL DEFAULT '',
    language     TEXT              NOT NULL DEFAULT '',
    keywords     TEXT[]            NOT NULL DEFAULT '{}',
    sentiment    DOUBLE PRECISION  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_speech_events_recorded_at
    ON speech_events (recorded_at);

CREATE INDEX IF NOT EXISTS idx_speech_events_keywords
    ON speech_events USING GIN (keywords);
`

// Migrate creates the speech_events table and its indexes. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSpeechEvents); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
