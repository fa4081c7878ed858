// Package tally selects the leading song of a room's queue.
package tally

import (
	"context"

	"github.com/google/uuid"
	"github.com/pscheid92/jukevote/internal/domain"
)

// QueueStore is the subset of song storage the tally needs.
type QueueStore interface {
	GetQueue(ctx context.Context, playlistID uuid.UUID) ([]domain.Song, error)
}

// Engine computes the current leader of a playlist.
type Engine struct {
	songs QueueStore
}

func New(songs QueueStore) *Engine {
	return &Engine{songs: songs}
}

// Leader returns the song that should play next: the not-currently-playing
// song with the strictly highest vote total, at least one vote required.
// Returns nil when no song qualifies.
func (e *Engine) Leader(ctx context.Context, playlistID uuid.UUID) (*domain.Song, error) {
	queue, err := e.songs.GetQueue(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return PickLeader(queue), nil
}

// PickLeader selects the leader from a queue snapshot. Ties break by earliest
// added-at, then by id, so the result is deterministic for a given snapshot
// regardless of input order.
func PickLeader(queue []domain.Song) *domain.Song {
	var leader *domain.Song
	for i := range queue {
		candidate := &queue[i]
		if candidate.IsPlaying || candidate.VoteCount == 0 {
			continue
		}
		if leader == nil || beats(candidate, leader) {
			leader = candidate
		}
	}
	if leader == nil {
		return nil
	}
	picked := *leader
	return &picked
}

func beats(a, b *domain.Song) bool {
	if a.VoteCount != b.VoteCount {
		return a.VoteCount > b.VoteCount
	}
	if !a.AddedAt.Equal(b.AddedAt) {
		return a.AddedAt.Before(b.AddedAt)
	}
	return a.ID.String() < b.ID.String()
}
