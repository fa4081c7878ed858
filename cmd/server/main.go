package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/jukevote/internal/app"
	"github.com/pscheid92/jukevote/internal/config"
	"github.com/pscheid92/jukevote/internal/database"
	"github.com/pscheid92/jukevote/internal/hub"
	"github.com/pscheid92/jukevote/internal/itunes"
	"github.com/pscheid92/jukevote/internal/ledger"
	"github.com/pscheid92/jukevote/internal/logging"
	"github.com/pscheid92/jukevote/internal/promotion"
	"github.com/pscheid92/jukevote/internal/redis"
	"github.com/pscheid92/jukevote/internal/retry"
	"github.com/pscheid92/jukevote/internal/rooms"
	"github.com/pscheid92/jukevote/internal/server"
	"github.com/pscheid92/jukevote/internal/tally"
	"github.com/pscheid92/jukevote/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// connectPolicy covers dependencies that may come up after us during a deploy.
var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Connection attempt failed, retrying", "attempt", attempt, "backoff", backoff.String(), "error", err)
	},
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := retry.Do(ctx, connectPolicy, retry.Transient, func() (*pgxpool.Pool, error) {
		return database.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := retry.Do(ctx, connectPolicy, retry.Transient, func() (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, dispatcher *rooms.Dispatcher, stopRelay context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// The dispatcher drains its backlog into the hub, so it must stop
		// first; the relay stops next so nothing else feeds the hub.
		dispatcher.Stop()
		stopRelay()
		h.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "build", version.Get().String())

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	presence := redis.NewPresenceStore(redisClient, clock)

	hosts := database.NewHostRepo(pool)
	playlists := database.NewPlaylistRepo(pool)
	songs := database.NewSongRepo(pool)
	votes := database.NewVoteRepo(pool)

	votesLedger := ledger.New(votes)
	promoter := promotion.New(songs, tally.New(songs))

	onLastLeave := func(roomID uuid.UUID) {
		if err := presence.Forget(context.Background(), roomID); err != nil {
			slog.Error("Failed to clear room presence", "room_id", roomID.String(), "error", err)
		}
	}
	h := hub.New(clock, cfg.MaxClientsPerRoom, onLastLeave)

	// Events go through the relay so rooms with voters on other instances
	// still see them.
	relay := redis.NewEventRelay(redisClient, h)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go relay.Start(relayCtx)

	dispatcher := rooms.NewDispatcher(votesLedger, promoter, relay, presence, clock)

	searcher := itunes.New("")

	appSvc := app.NewService(hosts, playlists, songs, votes, presence, searcher, dispatcher, cfg.PublicBaseURL)

	srv := server.NewServer(cfg, appSvc, h, pool, redisClient)

	done := runGracefulShutdown(srv, h, dispatcher, stopRelay)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
