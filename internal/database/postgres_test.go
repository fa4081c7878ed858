package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pscheid92/jukevote/internal/domain"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	testPool, err = Connect(ctx, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func truncateAll(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE hosts, playlists, songs, votes CASCADE`)
	require.NoError(t, err)
}

// createTestRoom creates a host with an active playlist and returns both.
func createTestRoom(t *testing.T) (*domain.Host, *domain.Playlist) {
	t.Helper()
	ctx := context.Background()

	host, err := NewHostRepo(testPool).Create(ctx, "host_"+uuid.NewString()[:8], "hash", "Test Host")
	require.NoError(t, err)

	playlist, err := NewPlaylistRepo(testPool).Create(ctx, host.ID, "Party Mix", true)
	require.NoError(t, err)

	return host, playlist
}

func addTestSong(t *testing.T, playlistID uuid.UUID, title string) *domain.Song {
	t.Helper()
	song, err := NewSongRepo(testPool).Add(context.Background(), playlistID, domain.NewSong{
		ITunesID: "123",
		Title:    title,
		Artist:   "Artist",
	})
	require.NoError(t, err)
	return song
}
