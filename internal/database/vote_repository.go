package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VoteRepo implements domain.VoteStore backed by PostgreSQL. The
// (song_id, voter_id) uniqueness constraint is the sole cross-process
// consistency mechanism: concurrent inserts of the same pair race at the
// database and exactly one wins.
type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// InsertIfAbsent records the vote unless the voter already voted for this
// song. Returns true if a new row was inserted.
func (r *VoteRepo) InsertIfAbsent(ctx context.Context, songID uuid.UUID, voterID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO votes (song_id, voter_id)
		VALUES ($1, $2)
		ON CONFLICT (song_id, voter_id) DO NOTHING`,
		songID, voterID)
	if err != nil {
		return false, fmt.Errorf("failed to insert vote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *VoteRepo) Count(ctx context.Context, songID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM votes WHERE song_id = $1`, songID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

func (r *VoteRepo) CountForPlaylist(ctx context.Context, playlistID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM votes v JOIN songs s ON s.id = v.song_id
		WHERE s.playlist_id = $1`, playlistID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count playlist votes: %w", err)
	}
	return count, nil
}
