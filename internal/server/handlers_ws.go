package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/pscheid92/jukevote/internal/domain"
	apperrors "github.com/pscheid92/jukevote/internal/errors"
	"github.com/pscheid92/jukevote/internal/metrics"
)

// Inbound message types on the voting socket.
const (
	msgTypeVote      = "vote"
	msgTypeHeartbeat = "heartbeat"
)

// Votes per connection: one sustained per second, small burst for catching
// up after a queue refresh.
const (
	voteRatePerSecond = 1
	voteRateBurst     = 5
)

// Any inbound message proves the client is alive, so the read deadline is
// pushed out on every read, not just on pongs. Variable so tests can shrink
// the window.
var wsReadDeadline = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // voters join from the QR-shared link on any origin
	},
}

type inboundMessage struct {
	Type   string    `json:"type"`
	SongID uuid.UUID `json:"songId"`
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()

	room, err := s.app.RoomByCode(ctx, c.Param("code"))
	if err != nil {
		return err
	}

	ip := c.RealIP()
	if ok, reason := s.wsLimits.Acquire(ip); !ok {
		slog.Warn("rejecting connection", "ip", ip, "reason", string(reason))
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}
	defer s.wsLimits.Release(ip)

	// Voters self-assign an id and keep it in local storage; first-time
	// voters get a fresh one.
	voterID := c.QueryParam("voterId")
	if voterID == "" {
		voterID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.Join(room.HostID, conn); err != nil {
		slog.Warn("hub rejected client", "room_id", room.HostID, "error", err)
		return nil
	}

	s.app.Heartbeat(ctx, room.HostID, voterID)

	// Read pump. All writes to the connection happen in the hub's writer,
	// this loop only consumes votes and heartbeats. Rejections are answered
	// with an error event to this connection only; the connection stays open.
	limiter := rate.NewLimiter(voteRatePerSecond, voteRateBurst)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				metrics.WebSocketDeadConnections.Inc()
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.hub.Send(room.HostID, conn, domain.ErrorEvent("invalid message"))
			continue
		}

		switch msg.Type {
		case msgTypeHeartbeat:
			s.app.Heartbeat(ctx, room.HostID, voterID)
		case msgTypeVote:
			if msg.SongID == uuid.Nil {
				s.hub.Send(room.HostID, conn, domain.ErrorEvent("songId is required"))
				continue
			}
			if !limiter.Allow() {
				slog.Debug("vote rate limited", "room_id", room.HostID, "voter_id", voterID)
				s.hub.Send(room.HostID, conn, domain.ErrorEvent("slow down"))
				continue
			}
			if _, err := s.app.CastVote(ctx, room, msg.SongID, voterID); err != nil {
				slog.Warn("vote failed", "room_id", room.HostID, "song_id", msg.SongID, "error", err)
				s.hub.Send(room.HostID, conn, domain.ErrorEvent(voteErrorMessage(err)))
			}
		}
	}

	s.hub.Leave(room.HostID, conn)
	return nil
}

// voteErrorMessage picks the message for the error event sent back to a
// voter. Internal failures stay vague and retryable.
func voteErrorMessage(err error) string {
	structured := apperrors.AsError(mapDomainError(err))
	if structured.Type == apperrors.TypeInternal {
		return "vote failed, try again"
	}
	return structured.Message
}
