package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"

	"github.com/pscheid92/jukevote/internal/domain"
	apperrors "github.com/pscheid92/jukevote/internal/errors"
)

const qrCodeSize = 256

// --- Playlists ---

type createPlaylistRequest struct {
	Name     string `json:"name"`
	Activate bool   `json:"activate"`
}

func (s *Server) handleListPlaylists(c echo.Context) error {
	playlists, err := s.app.ListPlaylists(c.Request().Context(), s.hostID(c))
	if err != nil {
		return err
	}
	out := make([]map[string]any, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, map[string]any{
			"id":       p.ID,
			"name":     p.Name,
			"isActive": p.IsActive,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreatePlaylist(c echo.Context) error {
	var req createPlaylistRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	playlist, err := s.app.CreatePlaylist(c.Request().Context(), s.hostID(c), req.Name, req.Activate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"id":       playlist.ID,
		"name":     playlist.Name,
		"isActive": playlist.IsActive,
	})
}

func (s *Server) handleActivatePlaylist(c echo.Context) error {
	playlistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.Validation("invalid playlist id")
	}

	if err := s.app.ActivatePlaylist(c.Request().Context(), s.hostID(c), playlistID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// --- Songs ---

func (s *Server) handleAddSong(c echo.Context) error {
	var req domain.NewSong
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	song, err := s.app.AddSong(c.Request().Context(), s.hostID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, song)
}

func (s *Server) handlePlayNow(c echo.Context) error {
	songID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.Validation("invalid song id")
	}

	if err := s.app.PlayNow(c.Request().Context(), s.hostID(c), songID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// --- Stats ---

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.app.Stats(c.Request().Context(), s.hostID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// --- Search ---

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.Validation("invalid limit")
		}
		limit = parsed
	}

	results, err := s.app.SearchSongs(c.Request().Context(), query, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// --- Share link ---

func (s *Server) handleShare(c echo.Context) error {
	host, err := s.app.GetHost(c.Request().Context(), s.hostID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"shareCode": host.ShareCode,
		"shareUrl":  s.app.ShareURL(host.ShareCode),
	})
}

func (s *Server) handleShareQR(c echo.Context) error {
	host, err := s.app.GetHost(c.Request().Context(), s.hostID(c))
	if err != nil {
		return err
	}

	png, err := qrcode.Encode(s.app.ShareURL(host.ShareCode), qrcode.Medium, qrCodeSize)
	if err != nil {
		return apperrors.Internal("encoding qr code", err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// --- Public room API ---

func (s *Server) handleRoomInfo(c echo.Context) error {
	info, err := s.app.PublicRoomInfo(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleRoomQueue(c echo.Context) error {
	ctx := c.Request().Context()
	room, err := s.app.RoomByCode(ctx, c.Param("code"))
	if err != nil {
		return err
	}

	queue, err := s.app.Queue(ctx, room.PlaylistID)
	if err != nil {
		return err
	}
	playing, err := s.app.NowPlaying(ctx, room.PlaylistID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"songs":      queue,
		"nowPlaying": playing,
	})
}
