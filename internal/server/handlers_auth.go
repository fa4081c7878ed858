package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/jukevote/internal/errors"
)

// Session keys
const (
	sessionName      = "jukevote-session"
	sessionKeyHostID = "hostID"
)

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type hostResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	ShareCode   string    `json:"shareCode"`
}

// --- Auth middleware ---

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			return apperrors.Unauthorized("not logged in")
		}

		raw, ok := session.Values[sessionKeyHostID]
		if !ok {
			return apperrors.Unauthorized("not logged in")
		}

		idStr, ok := raw.(string)
		if !ok {
			return apperrors.Unauthorized("not logged in")
		}

		hostID, err := uuid.Parse(idStr)
		if err != nil {
			return apperrors.Unauthorized("not logged in")
		}

		c.Set("hostID", hostID)
		return next(c)
	}
}

func (s *Server) hostID(c echo.Context) uuid.UUID {
	return c.Get("hostID").(uuid.UUID)
}

// --- Auth handlers ---

func (s *Server) handleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	host, err := s.app.Register(c.Request().Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		return err
	}

	if err := s.createSession(c, host.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, hostResponse{
		ID:          host.ID,
		Username:    host.Username,
		DisplayName: host.DisplayName,
		ShareCode:   host.ShareCode,
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	host, err := s.app.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	if err := s.createSession(c, host.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, hostResponse{
		ID:          host.ID,
		Username:    host.Username,
		DisplayName: host.DisplayName,
		ShareCode:   host.ShareCode,
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.Warn("failed to get session during logout", "error", err)
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return apperrors.Internal("creating session", err)
		}
	}
	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.Internal("clearing session", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(c echo.Context) error {
	host, err := s.app.GetHost(c.Request().Context(), s.hostID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hostResponse{
		ID:          host.ID,
		Username:    host.Username,
		DisplayName: host.DisplayName,
		ShareCode:   host.ShareCode,
	})
}

func (s *Server) createSession(c echo.Context, hostID uuid.UUID) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.Warn("failed to get session, starting fresh", "error", err)
	}
	session.Values[sessionKeyHostID] = hostID.String()
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.Internal("saving session", err)
	}
	return nil
}
