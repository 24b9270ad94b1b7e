package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the Postgres connection pool
type DB struct {
	*sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	owner      TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, key)
);

CREATE TABLE IF NOT EXISTS lookup_events (
	id         BIGSERIAL PRIMARY KEY,
	key        TEXT NOT NULL,
	at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	from_phase TEXT,
	to_phase   TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	meta_json  TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS lookup_events_key_at ON lookup_events (key, at DESC);
`

// NewDB opens a Postgres connection and verifies it is reachable
func NewDB(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// Migrate creates the tables used by the viewer
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
