// Package store reads events and their uploads from Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPgxPool connects to url and checks the connection.
func NewPgxPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		event_date VARCHAR(20) NOT NULL,
		post_event_video_url VARCHAR(500)
	)`,
	`CREATE TABLE IF NOT EXISTS event_photos (
		id SERIAL PRIMARY KEY,
		event_id INTEGER NOT NULL REFERENCES events(id),
		photo_url VARCHAR(500) NOT NULL,
		uploaded_by_name VARCHAR(255),
		media_type VARCHAR(20) DEFAULT 'photo',
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS event_photos_event_id_idx ON event_photos (event_id, created_at)`,
}

// Migrate creates the tables the highlight service reads when missing.
// Existing tables are left alone.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
