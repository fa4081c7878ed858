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

// songColumns must match the Scan order in scanSong.
const songColumns = `s.id, s.playlist_id, s.itunes_id, s.title, s.artist,
	COALESCE(s.album, ''), COALESCE(s.duration, 0),
	COALESCE(s.artwork_url, ''), COALESCE(s.preview_url, ''),
	s.is_playing, s.added_at`

// SongRepo implements domain.SongRepository backed by PostgreSQL.
type SongRepo struct {
	pool *pgxpool.Pool
}

func NewSongRepo(pool *pgxpool.Pool) *SongRepo {
	return &SongRepo{pool: pool}
}

func (r *SongRepo) Add(ctx context.Context, playlistID uuid.UUID, song domain.NewSong) (*domain.Song, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO songs (playlist_id, itunes_id, title, artist, album, duration, artwork_url, preview_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, 0), NULLIF($7, ''), NULLIF($8, ''))
		RETURNING id, playlist_id, itunes_id, title, artist,
			COALESCE(album, ''), COALESCE(duration, 0),
			COALESCE(artwork_url, ''), COALESCE(preview_url, ''),
			is_playing, added_at`,
		playlistID, song.ITunesID, song.Title, song.Artist, song.Album, song.Duration, song.ArtworkURL, song.PreviewURL)

	s, err := scanSong(row)
	if err != nil {
		return nil, fmt.Errorf("failed to add song: %w", err)
	}
	return s, nil
}

func (r *SongRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+songColumns+`, COUNT(v.id)
		FROM songs s LEFT JOIN votes v ON v.song_id = s.id
		WHERE s.id = $1
		GROUP BY s.id`, id)

	s, err := scanSongWithVotes(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load song: %w", err)
	}
	return s, nil
}

// GetQueue returns all songs in the playlist with their vote counts, ordered
// by queue-addition time. Leader selection happens in the tally package; the
// stable order here keeps that computation deterministic.
func (r *SongRepo) GetQueue(ctx context.Context, playlistID uuid.UUID) ([]domain.Song, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+songColumns+`, COUNT(v.id)
		FROM songs s LEFT JOIN votes v ON v.song_id = s.id
		WHERE s.playlist_id = $1
		GROUP BY s.id
		ORDER BY s.added_at, s.id`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	defer rows.Close()

	var songs []domain.Song
	for rows.Next() {
		var s domain.Song
		if err := rows.Scan(
			&s.ID, &s.PlaylistID, &s.ITunesID, &s.Title, &s.Artist,
			&s.Album, &s.Duration, &s.ArtworkURL, &s.PreviewURL,
			&s.IsPlaying, &s.AddedAt, &s.VoteCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

func (r *SongRepo) GetPlaying(ctx context.Context, playlistID uuid.UUID) (*domain.Song, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+songColumns+`, COUNT(v.id)
		FROM songs s LEFT JOIN votes v ON v.song_id = s.id
		WHERE s.playlist_id = $1 AND s.is_playing
		GROUP BY s.id`, playlistID)

	s, err := scanSongWithVotes(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load playing song: %w", err)
	}
	return s, nil
}

// SetPlaying clears the playlist's previous playing flag and sets songID's
// flag inside one transaction, so the one-playing-song invariant holds for
// every observer.
func (r *SongRepo) SetPlaying(ctx context.Context, playlistID, songID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `UPDATE songs SET is_playing = FALSE WHERE playlist_id = $1 AND is_playing`, playlistID); err != nil {
		return fmt.Errorf("failed to clear playing flag: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE songs SET is_playing = TRUE WHERE id = $1 AND playlist_id = $2`, songID, playlistID)
	if err != nil {
		return fmt.Errorf("failed to set playing flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSongNotFound
	}

	return tx.Commit(ctx)
}

func scanSong(row pgx.Row) (*domain.Song, error) {
	var s domain.Song
	err := row.Scan(
		&s.ID, &s.PlaylistID, &s.ITunesID, &s.Title, &s.Artist,
		&s.Album, &s.Duration, &s.ArtworkURL, &s.PreviewURL,
		&s.IsPlaying, &s.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSongWithVotes(row pgx.Row) (*domain.Song, error) {
	var s domain.Song
	err := row.Scan(
		&s.ID, &s.PlaylistID, &s.ITunesID, &s.Title, &s.Artist,
		&s.Album, &s.Duration, &s.ArtworkURL, &s.PreviewURL,
		&s.IsPlaying, &s.AddedAt, &s.VoteCount,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
