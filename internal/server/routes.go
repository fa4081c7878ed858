package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Host accounts
	s.echo.POST("/api/auth/register", s.handleRegister)
	s.echo.POST("/api/auth/login", s.handleLogin)
	s.echo.POST("/api/auth/logout", s.handleLogout)
	s.echo.GET("/api/me", s.handleMe, s.requireAuth)

	// Host dashboard API (authenticated)
	s.echo.GET("/api/playlists", s.handleListPlaylists, s.requireAuth)
	s.echo.POST("/api/playlists", s.handleCreatePlaylist, s.requireAuth)
	s.echo.POST("/api/playlists/:id/activate", s.handleActivatePlaylist, s.requireAuth)
	s.echo.POST("/api/songs", s.handleAddSong, s.requireAuth)
	s.echo.POST("/api/songs/:id/play", s.handlePlayNow, s.requireAuth)
	s.echo.GET("/api/stats", s.handleStats, s.requireAuth)
	s.echo.GET("/api/search", s.handleSearch, s.requireAuth)
	s.echo.GET("/api/share", s.handleShare, s.requireAuth)
	s.echo.GET("/api/share/qr", s.handleShareQR, s.requireAuth)

	// Voter API (public, keyed by share code)
	s.echo.GET("/api/rooms/:code", s.handleRoomInfo)
	s.echo.GET("/api/rooms/:code/queue", s.handleRoomQueue)

	// Voting WebSocket (public)
	s.echo.GET("/ws/:code", s.handleWebSocket)
}
