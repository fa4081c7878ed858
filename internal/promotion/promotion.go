// Package promotion decides when a song becomes "now playing".
//
// Policy: votes pick what plays next, they never interrupt what is already
// playing. Auto-promotion fires only while nothing is playing; the host's
// explicit play-now command is an unconditional override.
package promotion

import (
	"context"

	"github.com/google/uuid"
	"github.com/pscheid92/jukevote/internal/domain"
	"github.com/pscheid92/jukevote/internal/metrics"
)

// SongFlagStore is the subset of song storage the controller needs.
// SetPlaying must clear the old flag and set the new one atomically.
type SongFlagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Song, error)
	GetPlaying(ctx context.Context, playlistID uuid.UUID) (*domain.Song, error)
	SetPlaying(ctx context.Context, playlistID, songID uuid.UUID) error
}

// LeaderSource yields the room's current leader.
type LeaderSource interface {
	Leader(ctx context.Context, playlistID uuid.UUID) (*domain.Song, error)
}

// Controller runs the per-room playing-state machine. Callers must serialize
// invocations per room (the rooms dispatcher does); the controller itself
// holds no locks.
type Controller struct {
	songs SongFlagStore
	tally LeaderSource
}

func New(songs SongFlagStore, tally LeaderSource) *Controller {
	return &Controller{songs: songs, tally: tally}
}

// CheckAfterVote runs the auto-promotion check after an accepted vote.
// Returns the newly promoted song, or nil when no transition happened.
func (c *Controller) CheckAfterVote(ctx context.Context, playlistID uuid.UUID) (*domain.Song, error) {
	playing, err := c.songs.GetPlaying(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if playing != nil {
		// Something is on: never pre-empt mid-playback.
		return nil, nil
	}

	leader, err := c.tally.Leader(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if leader == nil {
		return nil, nil
	}

	if err := c.songs.SetPlaying(ctx, playlistID, leader.ID); err != nil {
		return nil, err
	}
	leader.IsPlaying = true
	metrics.PromotionsTotal.WithLabelValues("auto").Inc()
	return leader, nil
}

// PlayNow promotes songID unconditionally. The song must belong to the
// playlist; tallies and the current playing state are ignored.
func (c *Controller) PlayNow(ctx context.Context, playlistID, songID uuid.UUID) (*domain.Song, error) {
	song, err := c.songs.GetByID(ctx, songID)
	if err != nil {
		return nil, err
	}
	if song.PlaylistID != playlistID {
		return nil, domain.ErrSongNotFound
	}

	if err := c.songs.SetPlaying(ctx, playlistID, songID); err != nil {
		return nil, err
	}
	song.IsPlaying = true
	metrics.PromotionsTotal.WithLabelValues("override").Inc()
	return song, nil
}
