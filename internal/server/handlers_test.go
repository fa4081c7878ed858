package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jukevote/internal/app"
	"github.com/pscheid92/jukevote/internal/config"
	"github.com/pscheid92/jukevote/internal/domain"
	"github.com/pscheid92/jukevote/internal/hub"
	"github.com/pscheid92/jukevote/internal/ledger"
	"github.com/pscheid92/jukevote/internal/promotion"
	"github.com/pscheid92/jukevote/internal/rooms"
	"github.com/pscheid92/jukevote/internal/tally"
)

// memStore implements every repository interface in memory so handler tests
// exercise the full stack below the HTTP layer.
type memStore struct {
	mu        sync.Mutex
	hosts     map[uuid.UUID]*domain.Host
	playlists map[uuid.UUID]*domain.Playlist
	songs     map[uuid.UUID]*domain.Song
	queue     map[uuid.UUID][]uuid.UUID
	votes     map[uuid.UUID]map[string]struct{}
	present   map[uuid.UUID]map[string]struct{}
	playing   map[uuid.UUID]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		hosts:     make(map[uuid.UUID]*domain.Host),
		playlists: make(map[uuid.UUID]*domain.Playlist),
		songs:     make(map[uuid.UUID]*domain.Song),
		queue:     make(map[uuid.UUID][]uuid.UUID),
		votes:     make(map[uuid.UUID]map[string]struct{}),
		present:   make(map[uuid.UUID]map[string]struct{}),
		playing:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *memStore) Create(_ context.Context, username, passwordHash, displayName string) (*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hosts {
		if h.Username == username {
			return nil, domain.ErrUsernameTaken
		}
	}
	h := &domain.Host{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		ShareCode:    uuid.NewString()[:8],
		CreatedAt:    time.Now(),
	}
	m.hosts[h.ID] = h
	cp := *h
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[id]
	if !ok {
		return nil, domain.ErrHostNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hosts {
		if h.Username == username {
			cp := *h
			return &cp, nil
		}
	}
	return nil, domain.ErrHostNotFound
}

func (m *memStore) GetByShareCode(_ context.Context, code string) (*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hosts {
		if h.ShareCode == code {
			cp := *h
			return &cp, nil
		}
	}
	return nil, domain.ErrHostNotFound
}

func (m *memStore) CreatePlaylist(_ context.Context, hostID uuid.UUID, name string, isActive bool) (*domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isActive {
		for _, p := range m.playlists {
			if p.HostID == hostID {
				p.IsActive = false
			}
		}
	}
	p := &domain.Playlist{ID: uuid.New(), HostID: hostID, Name: name, IsActive: isActive, CreatedAt: time.Now()}
	m.playlists[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPlaylistByID(_ context.Context, id uuid.UUID) (*domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return nil, domain.ErrPlaylistNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListByHost(_ context.Context, hostID uuid.UUID) ([]domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Playlist
	for _, p := range m.playlists {
		if p.HostID == hostID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) GetActive(_ context.Context, hostID uuid.UUID) (*domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.playlists {
		if p.HostID == hostID && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNoActivePlaylist
}

func (m *memStore) Activate(_ context.Context, hostID, playlistID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.playlists[playlistID]
	if !ok || target.HostID != hostID {
		return domain.ErrPlaylistNotFound
	}
	for _, p := range m.playlists {
		if p.HostID == hostID {
			p.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (m *memStore) Add(_ context.Context, playlistID uuid.UUID, song domain.NewSong) (*domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.Song{
		ID:         uuid.New(),
		PlaylistID: playlistID,
		ITunesID:   song.ITunesID,
		Title:      song.Title,
		Artist:     song.Artist,
		AddedAt:    time.Now(),
	}
	m.songs[s.ID] = s
	m.queue[playlistID] = append(m.queue[playlistID], s.ID)
	cp := *s
	return &cp, nil
}

func (m *memStore) GetSongByID(_ context.Context, id uuid.UUID) (*domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok {
		return nil, domain.ErrSongNotFound
	}
	cp := *s
	cp.VoteCount = len(m.votes[id])
	return &cp, nil
}

func (m *memStore) GetQueue(_ context.Context, playlistID uuid.UUID) ([]domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	playingID := m.playing[playlistID]
	out := make([]domain.Song, 0, len(m.queue[playlistID]))
	for _, id := range m.queue[playlistID] {
		s := *m.songs[id]
		s.VoteCount = len(m.votes[id])
		s.IsPlaying = id == playingID
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) GetPlaying(_ context.Context, playlistID uuid.UUID) (*domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.playing[playlistID]
	if !ok {
		return nil, nil
	}
	cp := *m.songs[id]
	cp.IsPlaying = true
	return &cp, nil
}

func (m *memStore) SetPlaying(_ context.Context, playlistID, songID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[songID]; !ok {
		return domain.ErrSongNotFound
	}
	m.playing[playlistID] = songID
	return nil
}

func (m *memStore) InsertIfAbsent(_ context.Context, songID uuid.UUID, voterID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	voters, ok := m.votes[songID]
	if !ok {
		voters = make(map[string]struct{})
		m.votes[songID] = voters
	}
	if _, dup := voters[voterID]; dup {
		return false, nil
	}
	voters[voterID] = struct{}{}
	return true, nil
}

func (m *memStore) Count(_ context.Context, songID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes[songID]), nil
}

func (m *memStore) CountForPlaylist(_ context.Context, playlistID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, id := range m.queue[playlistID] {
		total += len(m.votes[id])
	}
	return total, nil
}

func (m *memStore) Touch(_ context.Context, roomID uuid.UUID, voterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	voters, ok := m.present[roomID]
	if !ok {
		voters = make(map[string]struct{})
		m.present[roomID] = voters
	}
	voters[voterID] = struct{}{}
	return nil
}

func (m *memStore) CountActive(_ context.Context, roomID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.present[roomID]), nil
}

func (m *memStore) Forget(_ context.Context, roomID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.present, roomID)
	return nil
}

type playlistView struct{ *memStore }

func (v playlistView) Create(ctx context.Context, hostID uuid.UUID, name string, isActive bool) (*domain.Playlist, error) {
	return v.CreatePlaylist(ctx, hostID, name, isActive)
}

func (v playlistView) GetByID(ctx context.Context, id uuid.UUID) (*domain.Playlist, error) {
	return v.GetPlaylistByID(ctx, id)
}

type songView struct{ *memStore }

func (v songView) GetByID(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	return v.GetSongByID(ctx, id)
}

type stubSearcher struct {
	results []domain.SearchResult
	err     error
}

func (s *stubSearcher) Search(context.Context, string, int) ([]domain.SearchResult, error) {
	return s.results, s.err
}

type stubPostgres struct{ err error }

func (s stubPostgres) Ping(context.Context) error { return s.err }

type stubRedis struct{ err error }

func (s stubRedis) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
	}
	return cmd
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	return newTestServerWithChecks(t, stubPostgres{}, stubRedis{})
}

func newTestServerWithChecks(t *testing.T, db postgresHealthChecker, redis redisHealthChecker) (*Server, *memStore) {
	t.Helper()

	store := newMemStore()
	clock := clockwork.NewRealClock()

	h := hub.New(clock, 50, nil)
	t.Cleanup(h.Stop)

	songs := songView{store}
	dispatcher := rooms.NewDispatcher(
		ledger.New(store),
		promotion.New(songs, tally.New(store)),
		h,
		store,
		clock,
	)
	t.Cleanup(dispatcher.Stop)

	cfg := &config.Config{
		AppEnv:            "test",
		Port:              "0",
		SessionSecret:     "test-secret-test-secret-test-secret!",
		PublicBaseURL:     "https://juke.example.com",
		MaxClientsPerRoom: 50,
	}

	service := app.NewService(store, playlistView{store}, songs, store, store, &stubSearcher{}, dispatcher, cfg.PublicBaseURL)
	srv := NewServer(cfg, service, h, db, redis)
	return srv, store
}

// doJSON performs a request against the server's router and returns the
// recorder. Cookies carry the login session between calls.
func doJSON(t *testing.T, srv *Server, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echoHeaderContentType, echoMIMEApplicationJSON)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const (
	echoHeaderContentType   = "Content-Type"
	echoMIMEApplicationJSON = "application/json"
)

// registerHost registers a host through the API and returns its response
// body and session cookies.
func registerHost(t *testing.T, srv *Server, username string) (hostResponse, []*http.Cookie) {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", credentialsRequest{
		Username:    username,
		Password:    "correcthorse",
		DisplayName: "DJ " + username,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var host hostResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &host))
	return host, rec.Result().Cookies()
}

// setupRoom registers a host with an active playlist.
func setupRoom(t *testing.T, srv *Server, username string) (hostResponse, []*http.Cookie) {
	t.Helper()
	host, cookies := registerHost(t, srv, username)

	rec := doJSON(t, srv, http.MethodPost, "/api/playlists", createPlaylistRequest{
		Name:     "Friday Night",
		Activate: true,
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return host, cookies
}
