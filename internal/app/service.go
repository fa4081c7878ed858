package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/jukevote/internal/domain"
	apperrors "github.com/pscheid92/jukevote/internal/errors"
	"github.com/pscheid92/jukevote/internal/ledger"
	"github.com/pscheid92/jukevote/internal/rooms"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 32
)

// Service is the application layer. It is the only component that references
// multiple domain components and orchestrates all use cases.
type Service struct {
	hosts     domain.HostRepository
	playlists domain.PlaylistRepository
	songs     domain.SongRepository
	votes     domain.VoteStore
	presence  domain.PresenceStore
	searcher  domain.SongSearcher
	rooms     *rooms.Dispatcher
	roomGroup singleflight.Group
	baseURL   string
}

// NewService creates the application layer service. baseURL is the public
// address share links are built from.
func NewService(hosts domain.HostRepository, playlists domain.PlaylistRepository, songs domain.SongRepository, votes domain.VoteStore, presence domain.PresenceStore, searcher domain.SongSearcher, dispatcher *rooms.Dispatcher, baseURL string) *Service {
	return &Service{
		hosts:     hosts,
		playlists: playlists,
		songs:     songs,
		votes:     votes,
		presence:  presence,
		searcher:  searcher,
		rooms:     dispatcher,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// --- Host accounts ---

// Register creates a host account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*domain.Host, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, apperrors.Validation("username must be 1-32 characters")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.Validation("password must be at least 8 characters")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("hashing password", err)
	}

	host, err := s.hosts.Create(ctx, username, string(hash), displayName)
	if err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, apperrors.Conflict("username already taken")
		}
		return nil, err
	}
	return host, nil
}

// Login verifies a host's credentials.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.Host, error) {
	host, err := s.hosts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrHostNotFound) {
			return nil, apperrors.Unauthorized("invalid username or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(host.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid username or password")
	}
	return host, nil
}

// GetHost retrieves a host by ID.
func (s *Service) GetHost(ctx context.Context, hostID uuid.UUID) (*domain.Host, error) {
	return s.hosts.GetByID(ctx, hostID)
}

// --- Playlists ---

// CreatePlaylist creates a playlist. When activate is set it becomes the
// host's active queue and any previously active playlist is deactivated.
func (s *Service) CreatePlaylist(ctx context.Context, hostID uuid.UUID, name string, activate bool) (*domain.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("playlist name must not be empty")
	}
	return s.playlists.Create(ctx, hostID, name, activate)
}

// ListPlaylists returns all playlists of a host.
func (s *Service) ListPlaylists(ctx context.Context, hostID uuid.UUID) ([]domain.Playlist, error) {
	return s.playlists.ListByHost(ctx, hostID)
}

// ActivatePlaylist switches the host's active queue.
func (s *Service) ActivatePlaylist(ctx context.Context, hostID, playlistID uuid.UUID) error {
	return s.playlists.Activate(ctx, hostID, playlistID)
}

// --- Rooms ---

// RoomByCode resolves a share code to its live room. Concurrent lookups of
// the same code collapse into one database round trip.
func (s *Service) RoomByCode(ctx context.Context, code string) (domain.Room, error) {
	result, err, _ := s.roomGroup.Do(code, func() (any, error) {
		host, err := s.hosts.GetByShareCode(ctx, code)
		if err != nil {
			if errors.Is(err, domain.ErrHostNotFound) {
				return domain.Room{}, apperrors.NotFound("room not found")
			}
			return domain.Room{}, err
		}

		playlist, err := s.playlists.GetActive(ctx, host.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNoActivePlaylist) {
				return domain.Room{}, apperrors.NotFound("room has no active playlist")
			}
			return domain.Room{}, err
		}

		return domain.Room{HostID: host.ID, PlaylistID: playlist.ID, ShareCode: code}, nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return result.(domain.Room), nil
}

// RoomByHost resolves a host's own live room.
func (s *Service) RoomByHost(ctx context.Context, hostID uuid.UUID) (domain.Room, error) {
	host, err := s.hosts.GetByID(ctx, hostID)
	if err != nil {
		return domain.Room{}, err
	}
	playlist, err := s.playlists.GetActive(ctx, hostID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActivePlaylist) {
			return domain.Room{}, apperrors.NotFound("no active playlist")
		}
		return domain.Room{}, err
	}
	return domain.Room{HostID: host.ID, PlaylistID: playlist.ID, ShareCode: host.ShareCode}, nil
}

// RoomInfo is the public view of a room for the join page.
type RoomInfo struct {
	HostName     string `json:"hostName"`
	PlaylistName string `json:"playlistName"`
	ShareCode    string `json:"shareCode"`
}

// PublicRoomInfo returns what a voter sees before joining.
func (s *Service) PublicRoomInfo(ctx context.Context, code string) (*RoomInfo, error) {
	room, err := s.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	host, err := s.hosts.GetByID(ctx, room.HostID)
	if err != nil {
		return nil, err
	}
	playlist, err := s.playlists.GetByID(ctx, room.PlaylistID)
	if err != nil {
		return nil, err
	}
	return &RoomInfo{HostName: host.DisplayName, PlaylistName: playlist.Name, ShareCode: code}, nil
}

// ShareURL is the public link voters open to join a host's room.
func (s *Service) ShareURL(code string) string {
	return fmt.Sprintf("%s/room/%s", s.baseURL, code)
}

// --- Songs ---

// AddSong appends a song to the host's active queue and announces it to the
// room.
func (s *Service) AddSong(ctx context.Context, hostID uuid.UUID, song domain.NewSong) (*domain.Song, error) {
	if strings.TrimSpace(song.Title) == "" || strings.TrimSpace(song.Artist) == "" {
		return nil, apperrors.Validation("song title and artist must not be empty")
	}

	room, err := s.RoomByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}

	added, err := s.songs.Add(ctx, room.PlaylistID, song)
	if err != nil {
		return nil, err
	}

	if err := s.rooms.AnnounceSong(room, added); err != nil {
		return nil, err
	}
	return added, nil
}

// Queue returns a room's songs with vote counts, stable queue order.
func (s *Service) Queue(ctx context.Context, playlistID uuid.UUID) ([]domain.Song, error) {
	return s.songs.GetQueue(ctx, playlistID)
}

// NowPlaying returns the room's playing song, nil when silent.
func (s *Service) NowPlaying(ctx context.Context, playlistID uuid.UUID) (*domain.Song, error) {
	return s.songs.GetPlaying(ctx, playlistID)
}

// --- Voting and playback ---

// CastVote records a vote and runs the room's update pipeline.
func (s *Service) CastVote(ctx context.Context, room domain.Room, songID uuid.UUID, voterID string) (ledger.Result, error) {
	if voterID == "" {
		return ledger.Result{}, apperrors.Validation("voter id must not be empty")
	}

	song, err := s.songs.GetByID(ctx, songID)
	if err != nil {
		return ledger.Result{}, err
	}
	if song.PlaylistID != room.PlaylistID {
		return ledger.Result{}, apperrors.NotFound("song is not in this room")
	}

	return s.rooms.CastVote(ctx, room, songID, voterID)
}

// PlayNow lets the host start a specific song immediately.
func (s *Service) PlayNow(ctx context.Context, hostID, songID uuid.UUID) error {
	room, err := s.RoomByHost(ctx, hostID)
	if err != nil {
		return err
	}
	return s.rooms.PlayNow(ctx, room, songID)
}

// Heartbeat keeps a voter counted as present in a room.
func (s *Service) Heartbeat(ctx context.Context, roomID uuid.UUID, voterID string) {
	if voterID == "" {
		return
	}
	s.rooms.TouchPresence(ctx, roomID, voterID)
}

// --- Search ---

// SearchSongs queries the catalogue provider.
func (s *Service) SearchSongs(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	return s.searcher.Search(ctx, query, limit)
}

// --- Stats ---

// Stats summarizes the host's live session.
func (s *Service) Stats(ctx context.Context, hostID uuid.UUID) (*domain.HostStats, error) {
	room, err := s.RoomByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}

	active, err := s.presence.CountActive(ctx, room.HostID)
	if err != nil {
		return nil, err
	}
	total, err := s.votes.CountForPlaylist(ctx, room.PlaylistID)
	if err != nil {
		return nil, err
	}
	queue, err := s.songs.GetQueue(ctx, room.PlaylistID)
	if err != nil {
		return nil, err
	}

	return &domain.HostStats{
		ActiveVoters: active,
		TotalVotes:   total,
		QueueLength:  len(queue),
	}, nil
}
