package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the guardian tables if they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS elders (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	age           INTEGER NOT NULL DEFAULT 0,
	relationship  TEXT NOT NULL DEFAULT '',
	is_online     BOOLEAN NOT NULL DEFAULT FALSE,
	last_seen     TEXT NOT NULL DEFAULT '',
	battery_level INTEGER NOT NULL DEFAULT 0,
	paired_at     TEXT NOT NULL DEFAULT '',
	last_alert    JSONB,
	position      INTEGER NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
	id            TEXT PRIMARY KEY,
	elder_id      TEXT NOT NULL,
	type          TEXT NOT NULL,
	severity      TEXT NOT NULL,
	triggered_at  TIMESTAMPTZ NOT NULL,
	received_at   TIMESTAMPTZ NOT NULL,
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	battery_level INTEGER,
	resolved      BOOLEAN NOT NULL DEFAULT FALSE,
	notes         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS alerts_elder_triggered_idx ON alerts (elder_id, triggered_at DESC);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
