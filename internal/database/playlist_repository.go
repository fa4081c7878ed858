package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/jukevote/internal/domain"
)

const playlistColumns = `id, host_id, name, is_active, created_at`

// PlaylistRepo implements domain.PlaylistRepository backed by PostgreSQL.
type PlaylistRepo struct {
	pool *pgxpool.Pool
}

func NewPlaylistRepo(pool *pgxpool.Pool) *PlaylistRepo {
	return &PlaylistRepo{pool: pool}
}

func (r *PlaylistRepo) Create(ctx context.Context, hostID uuid.UUID, name string, isActive bool) (*domain.Playlist, error) {
	// Creating an active playlist replaces the host's current live room, so
	// both flag changes happen in one transaction.
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if isActive {
		if _, err := tx.Exec(ctx, `UPDATE playlists SET is_active = FALSE WHERE host_id = $1 AND is_active`, hostID); err != nil {
			return nil, fmt.Errorf("failed to deactivate playlists: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO playlists (host_id, name, is_active)
		VALUES ($1, $2, $3)
		RETURNING `+playlistColumns,
		hostID, name, isActive)

	playlist, err := scanPlaylist(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return playlist, nil
}

func (r *PlaylistRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Playlist, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id)
	playlist, err := scanPlaylist(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}
	return playlist, nil
}

func (r *PlaylistRepo) ListByHost(ctx context.Context, hostID uuid.UUID) ([]domain.Playlist, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+playlistColumns+` FROM playlists
		WHERE host_id = $1
		ORDER BY created_at`, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []domain.Playlist
	for rows.Next() {
		var p domain.Playlist
		if err := rows.Scan(&p.ID, &p.HostID, &p.Name, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

func (r *PlaylistRepo) GetActive(ctx context.Context, hostID uuid.UUID) (*domain.Playlist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+playlistColumns+` FROM playlists
		WHERE host_id = $1 AND is_active`, hostID)
	playlist, err := scanPlaylist(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoActivePlaylist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active playlist: %w", err)
	}
	return playlist, nil
}

// Activate makes playlistID the host's single active playlist. The old and
// new flags flip in one transaction so no reader ever sees two active rows.
func (r *PlaylistRepo) Activate(ctx context.Context, hostID, playlistID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `UPDATE playlists SET is_active = FALSE WHERE host_id = $1 AND is_active`, hostID); err != nil {
		return fmt.Errorf("failed to deactivate playlists: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE playlists SET is_active = TRUE WHERE id = $1 AND host_id = $2`, playlistID, hostID)
	if err != nil {
		return fmt.Errorf("failed to activate playlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlaylistNotFound
	}

	return tx.Commit(ctx)
}

func scanPlaylist(row pgx.Row) (*domain.Playlist, error) {
	var p domain.Playlist
	err := row.Scan(&p.ID, &p.HostID, &p.Name, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
