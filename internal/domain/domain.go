package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

type Host struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	DisplayName  string    `db:"display_name"`
	ShareCode    string    `db:"share_code"`
	CreatedAt    time.Time `db:"created_at"`
}

type Playlist struct {
	ID        uuid.UUID `db:"id"`
	HostID    uuid.UUID `db:"host_id"`
	Name      string    `db:"name"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

type Song struct {
	ID         uuid.UUID `json:"id"`
	PlaylistID uuid.UUID `json:"playlistId"`
	ITunesID   string    `json:"itunesId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	Duration   int       `json:"duration,omitempty"`
	ArtworkURL string    `json:"artworkUrl,omitempty"`
	PreviewURL string    `json:"previewUrl,omitempty"`
	IsPlaying  bool      `json:"isPlaying"`
	VoteCount  int       `json:"voteCount"`
	AddedAt    time.Time `json:"addedAt"`
}

// NewSong carries the fields a client supplies when adding a song to a queue.
type NewSong struct {
	ITunesID   string `json:"itunesId"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Duration   int    `json:"duration"`
	ArtworkURL string `json:"artworkUrl"`
	PreviewURL string `json:"previewUrl"`
}

// Room is one host's live voting session: the host plus its active queue.
type Room struct {
	HostID     uuid.UUID
	PlaylistID uuid.UUID
	ShareCode  string
}

// HostStats summarizes a host's live session for the dashboard.
type HostStats struct {
	ActiveVoters int `json:"activeUsers"`
	TotalVotes   int `json:"totalVotes"`
	QueueLength  int `json:"playlistLength"`
}

// --- Repository interfaces ---

// HostRepository abstracts host account persistence.
type HostRepository interface {
	Create(ctx context.Context, username, passwordHash, displayName string) (*Host, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Host, error)
	GetByUsername(ctx context.Context, username string) (*Host, error)
	GetByShareCode(ctx context.Context, code string) (*Host, error)
}

// PlaylistRepository abstracts playlist persistence.
type PlaylistRepository interface {
	Create(ctx context.Context, hostID uuid.UUID, name string, isActive bool) (*Playlist, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Playlist, error)
	ListByHost(ctx context.Context, hostID uuid.UUID) ([]Playlist, error)
	GetActive(ctx context.Context, hostID uuid.UUID) (*Playlist, error)
	Activate(ctx context.Context, hostID, playlistID uuid.UUID) error
}

// SongRepository abstracts song persistence and the playing flag.
// SetPlaying must flip the flag atomically: the previous flag is cleared and
// the new one set inside a single transaction.
type SongRepository interface {
	Add(ctx context.Context, playlistID uuid.UUID, song NewSong) (*Song, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Song, error)
	GetQueue(ctx context.Context, playlistID uuid.UUID) ([]Song, error)
	GetPlaying(ctx context.Context, playlistID uuid.UUID) (*Song, error)
	SetPlaying(ctx context.Context, playlistID, songID uuid.UUID) error
}

// VoteStore is the durable vote record. InsertIfAbsent relies on a storage
// level uniqueness constraint on (song, voter), so it is safe to call from
// multiple processes racing on the same pair.
type VoteStore interface {
	InsertIfAbsent(ctx context.Context, songID uuid.UUID, voterID string) (bool, error)
	Count(ctx context.Context, songID uuid.UUID) (int, error)
	CountForPlaylist(ctx context.Context, playlistID uuid.UUID) (int, error)
}

// PresenceStore tracks which voters have been active in a room recently.
type PresenceStore interface {
	Touch(ctx context.Context, roomID uuid.UUID, voterID string) error
	CountActive(ctx context.Context, roomID uuid.UUID) (int, error)
	Forget(ctx context.Context, roomID uuid.UUID) error
}

// SongSearcher queries the third-party song catalogue.
type SongSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// SearchResult is one song returned by the search provider.
type SearchResult struct {
	ITunesID   string `json:"itunesId"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	Duration   int    `json:"duration,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Publisher fans an event out to every live connection in a room.
// Delivery is best effort and never returns an error to the caller.
type Publisher interface {
	Publish(roomID uuid.UUID, event Event)
}
