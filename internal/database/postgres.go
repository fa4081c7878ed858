package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// RunMigrations applies the schema. Statements are idempotent so a restart
// can always re-run them.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS hosts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL,
			share_code TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			host_id UUID NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// At most one active playlist (= one live room) per host.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_one_active
			ON playlists(host_id) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS songs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			playlist_id UUID NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			itunes_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			duration INTEGER,
			artwork_url TEXT,
			preview_url TEXT,
			is_playing BOOLEAN NOT NULL DEFAULT FALSE,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// At most one playing song per playlist.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_songs_one_playing
			ON songs(playlist_id) WHERE is_playing`,
		`CREATE INDEX IF NOT EXISTS idx_songs_playlist ON songs(playlist_id)`,
		`CREATE TABLE IF NOT EXISTS votes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			song_id UUID NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
			voter_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (song_id, voter_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_song ON votes(song_id)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed")
	return nil
}
