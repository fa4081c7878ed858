package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/jukevote/internal/app"
	"github.com/pscheid92/jukevote/internal/config"
	"github.com/pscheid92/jukevote/internal/domain"
	apperrors "github.com/pscheid92/jukevote/internal/errors"
	"github.com/pscheid92/jukevote/internal/hub"
)

const sessionMaxAgeDays = 7

// Connection limits for the voting WebSocket endpoint.
const (
	wsMaxConnections = 5000
	wsMaxPerIP       = 32
	wsConnPerSecond  = 10.0
	wsConnBurst      = 20
)

// postgresHealthChecker is a minimal interface for PostgreSQL health checks.
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

// redisHealthChecker is a minimal interface for Redis health checks.
type redisHealthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	app          *app.Service
	hub          *hub.Hub
	sessionStore *sessions.CookieStore
	db           postgresHealthChecker
	redis        redisHealthChecker
	wsLimits     *ConnectionLimits
	startTime    time.Time
}

func NewServer(cfg *config.Config, service *app.Service, h *hub.Hub, db postgresHealthChecker, redis redisHealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * sessionMaxAgeDays,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          service,
		hub:          h,
		sessionStore: sessionStore,
		db:           db,
		redis:        redis,
		wsLimits:     NewConnectionLimits(wsMaxConnections, wsMaxPerIP, wsConnPerSecond, wsConnBurst),
		startTime:    time.Now(),
	}

	e.HTTPErrorHandler = srv.handleError
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError maps structured and domain errors onto JSON responses.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		_ = c.JSON(httpErr.Code, map[string]string{"error": msg})
		return
	}

	structured := apperrors.AsError(mapDomainError(err))
	if structured.Type == apperrors.TypeInternal {
		slog.Error("request failed", "path", c.Request().URL.Path, "error", err)
	}
	_ = c.JSON(structured.HTTPStatus(), map[string]string{"error": structured.Message})
}

// mapDomainError lifts domain sentinel errors into structured errors so
// handlers can return repository errors untouched.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrHostNotFound):
		return apperrors.NotFound("host not found")
	case errors.Is(err, domain.ErrPlaylistNotFound):
		return apperrors.NotFound("playlist not found")
	case errors.Is(err, domain.ErrSongNotFound):
		return apperrors.NotFound("song not found")
	case errors.Is(err, domain.ErrRoomNotFound):
		return apperrors.NotFound("room not found")
	case errors.Is(err, domain.ErrNoActivePlaylist):
		return apperrors.NotFound("no active playlist")
	case errors.Is(err, domain.ErrUsernameTaken):
		return apperrors.Conflict("username already taken")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.Unauthorized("invalid username or password")
	default:
		return err
	}
}
