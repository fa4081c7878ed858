package promotion

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jukevote/internal/domain"
)

type fakeSongStore struct {
	songs    map[uuid.UUID]*domain.Song
	playing  map[uuid.UUID]uuid.UUID // playlist -> song
	setErr   error
	setCalls int
}

func newFakeSongStore() *fakeSongStore {
	return &fakeSongStore{
		songs:   make(map[uuid.UUID]*domain.Song),
		playing: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeSongStore) add(playlistID uuid.UUID, votes int) *domain.Song {
	s := &domain.Song{ID: uuid.New(), PlaylistID: playlistID, Title: "t", Artist: "a", VoteCount: votes}
	f.songs[s.ID] = s
	return s
}

func (f *fakeSongStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Song, error) {
	s, ok := f.songs[id]
	if !ok {
		return nil, domain.ErrSongNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSongStore) GetPlaying(_ context.Context, playlistID uuid.UUID) (*domain.Song, error) {
	id, ok := f.playing[playlistID]
	if !ok {
		return nil, nil
	}
	cp := *f.songs[id]
	cp.IsPlaying = true
	return &cp, nil
}

func (f *fakeSongStore) SetPlaying(_ context.Context, playlistID, songID uuid.UUID) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	if _, ok := f.songs[songID]; !ok {
		return domain.ErrSongNotFound
	}
	f.playing[playlistID] = songID
	return nil
}

type fakeLeader struct {
	leader *domain.Song
	err    error
}

func (f *fakeLeader) Leader(context.Context, uuid.UUID) (*domain.Song, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.leader == nil {
		return nil, nil
	}
	cp := *f.leader
	return &cp, nil
}

func TestCheckAfterVote_PromotesLeaderWhenIdle(t *testing.T) {
	playlistID := uuid.New()
	store := newFakeSongStore()
	leader := store.add(playlistID, 3)

	ctrl := New(store, &fakeLeader{leader: leader})

	promoted, err := ctrl.CheckAfterVote(context.Background(), playlistID)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, leader.ID, promoted.ID)
	assert.True(t, promoted.IsPlaying)
	assert.Equal(t, leader.ID, store.playing[playlistID])
}

func TestCheckAfterVote_NeverPreemptsPlayingSong(t *testing.T) {
	playlistID := uuid.New()
	store := newFakeSongStore()
	current := store.add(playlistID, 1)
	challenger := store.add(playlistID, 10)
	store.playing[playlistID] = current.ID

	ctrl := New(store, &fakeLeader{leader: challenger})

	promoted, err := ctrl.CheckAfterVote(context.Background(), playlistID)
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.Equal(t, current.ID, store.playing[playlistID])
	assert.Zero(t, store.setCalls)
}

func TestCheckAfterVote_NoLeaderNoTransition(t *testing.T) {
	playlistID := uuid.New()
	store := newFakeSongStore()

	ctrl := New(store, &fakeLeader{})

	promoted, err := ctrl.CheckAfterVote(context.Background(), playlistID)
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.Zero(t, store.setCalls)
}

func TestCheckAfterVote_PropagatesStorageError(t *testing.T) {
	playlistID := uuid.New()
	store := newFakeSongStore()
	leader := store.add(playlistID, 2)
	store.setErr = errors.New("connection reset")

	ctrl := New(store, &fakeLeader{leader: leader})

	_, err := ctrl.CheckAfterVote(context.Background(), playlistID)
	assert.ErrorContains(t, err, "connection reset")
}

func TestPlayNow_OverridesCurrentSong(t *testing.T) {
	playlistID := uuid.New()
	store := newFakeSongStore()
	current := store.add(playlistID, 10)
	pick := store.add(playlistID, 0)
	store.playing[playlistID] = current.ID

	ctrl := New(store, &fakeLeader{})

	promoted, err := ctrl.PlayNow(context.Background(), playlistID, pick.ID)
	require.NoError(t, err)
	assert.Equal(t, pick.ID, promoted.ID)
	assert.True(t, promoted.IsPlaying)
	assert.Equal(t, pick.ID, store.playing[playlistID])
}

func TestPlayNow_RejectsSongFromOtherPlaylist(t *testing.T) {
	store := newFakeSongStore()
	other := store.add(uuid.New(), 0)

	ctrl := New(store, &fakeLeader{})

	_, err := ctrl.PlayNow(context.Background(), uuid.New(), other.ID)
	assert.ErrorIs(t, err, domain.ErrSongNotFound)
	assert.Zero(t, store.setCalls)
}

func TestPlayNow_UnknownSong(t *testing.T) {
	store := newFakeSongStore()
	ctrl := New(store, &fakeLeader{})

	_, err := ctrl.PlayNow(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrSongNotFound)
}
