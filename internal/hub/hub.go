// Package hub fans events out to the WebSocket clients of a room.
//
// A single goroutine owns all room and client state and processes typed
// commands from a channel, so no locking is needed. Each connection gets a
// dedicated writer goroutine with a bounded send buffer; clients that
// cannot keep up are evicted rather than allowed to stall a broadcast.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jukevote/internal/domain"
	"github.com/pscheid92/jukevote/internal/metrics"
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdJoin struct {
	roomID uuid.UUID
	conn   *websocket.Conn
	errCh  chan error
}

func (cmdJoin) hubCmd() {}

type cmdLeave struct {
	roomID uuid.UUID
	conn   *websocket.Conn
}

func (cmdLeave) hubCmd() {}

type cmdBroadcast struct {
	roomID uuid.UUID
	data   []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdSend struct {
	roomID uuid.UUID
	conn   *websocket.Conn
	data   []byte
}

func (cmdSend) hubCmd() {}

type cmdClientCount struct {
	roomID  uuid.UUID
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct {
	doneCh chan struct{}
}

func (cmdStop) hubCmd() {}

// --- Hub ---

// Hub is the room registry and broadcaster.
type Hub struct {
	cmdCh       chan hubCmd
	rooms       map[uuid.UUID]map[*websocket.Conn]*clientWriter
	clock       clockwork.Clock
	maxClients  int
	onLastLeave func(uuid.UUID)
}

// New starts the hub goroutine. onLastLeave fires after the last client of
// a room disconnects and the room entry is discarded; it may be nil.
func New(clock clockwork.Clock, maxClientsPerRoom int, onLastLeave func(uuid.UUID)) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		rooms:       make(map[uuid.UUID]map[*websocket.Conn]*clientWriter),
		clock:       clock,
		maxClients:  maxClientsPerRoom,
		onLastLeave: onLastLeave,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdJoin:
			h.handleJoin(c)
		case cmdLeave:
			h.handleLeave(c.roomID, c.conn, "")
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdSend:
			h.handleSend(c)
		case cmdClientCount:
			c.replyCh <- len(h.rooms[c.roomID])
		case cmdStop:
			h.handleStop()
			close(c.doneCh)
			return
		}
	}
}

func (h *Hub) handleJoin(c cmdJoin) {
	clients, exists := h.rooms[c.roomID]
	if exists && len(clients) >= h.maxClients {
		slog.Warn("rejecting client, room full", "room_id", c.roomID, "max_clients", h.maxClients)
		_ = c.conn.Close()
		c.errCh <- fmt.Errorf("room is full (%d clients)", h.maxClients)
		return
	}
	if !exists {
		clients = make(map[*websocket.Conn]*clientWriter)
		h.rooms[c.roomID] = clients
		metrics.HubActiveRooms.Set(float64(len(h.rooms)))
	}

	clients[c.conn] = newClientWriter(c.conn, h.clock)
	metrics.HubConnectedClients.Inc()
	slog.Debug("client joined room", "room_id", c.roomID, "clients", len(clients))
	c.errCh <- nil
}

func (h *Hub) handleLeave(roomID uuid.UUID, conn *websocket.Conn, reason string) {
	clients, exists := h.rooms[roomID]
	if !exists {
		return
	}

	cw, exists := clients[conn]
	if !exists {
		return
	}

	if reason != "" {
		cw.stopGraceful(reason)
	} else {
		cw.stop()
	}
	delete(clients, conn)
	metrics.HubConnectedClients.Dec()

	if len(clients) == 0 {
		delete(h.rooms, roomID)
		metrics.HubActiveRooms.Set(float64(len(h.rooms)))
		if h.onLastLeave != nil {
			h.onLastLeave(roomID)
		}
		slog.Debug("last client left room", "room_id", roomID)
	} else {
		slog.Debug("client left room", "room_id", roomID, "clients", len(clients))
	}
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	clients, exists := h.rooms[c.roomID]
	if !exists {
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendChannel <- c.data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("evicting slow client", "room_id", c.roomID)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleLeave(c.roomID, conn, "too slow to keep up")
	}
}

func (h *Hub) handleSend(c cmdSend) {
	cw, exists := h.rooms[c.roomID][c.conn]
	if !exists {
		return
	}

	select {
	case cw.sendChannel <- c.data:
	default:
		slog.Warn("evicting slow client", "room_id", c.roomID)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleLeave(c.roomID, c.conn, "too slow to keep up")
	}
}

func (h *Hub) handleStop() {
	for roomID, clients := range h.rooms {
		for _, cw := range clients {
			cw.stopGraceful("server shutting down")
			metrics.HubConnectedClients.Dec()
		}
		delete(h.rooms, roomID)
	}
	metrics.HubActiveRooms.Set(0)
}

// --- Public API ---

// Join registers a connection with a room. It blocks until the hub has
// accepted or rejected the client.
func (h *Hub) Join(roomID uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdJoin{roomID: roomID, conn: conn, errCh: errCh}
	return <-errCh
}

// Leave removes a connection from a room. Unknown connections are ignored,
// so calling it twice is safe.
func (h *Hub) Leave(roomID uuid.UUID, conn *websocket.Conn) {
	h.cmdCh <- cmdLeave{roomID: roomID, conn: conn}
}

// Publish broadcasts an event to every client of a room. Events published
// for the same room are delivered to each surviving client in order.
func (h *Hub) Publish(roomID uuid.UUID, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	metrics.HubEventsPublished.WithLabelValues(event.Type).Inc()
	h.cmdCh <- cmdBroadcast{roomID: roomID, data: data}
}

// Send delivers an event to a single connection, typically an error reply
// for a rejected action. Unknown connections are ignored.
func (h *Hub) Send(roomID uuid.UUID, conn *websocket.Conn, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	h.cmdCh <- cmdSend{roomID: roomID, conn: conn, data: data}
}

// ClientCount reports how many clients a room currently has.
func (h *Hub) ClientCount(roomID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{roomID: roomID, replyCh: replyCh}
	return <-replyCh
}

// Stop closes every connection and shuts the hub goroutine down.
func (h *Hub) Stop() {
	doneCh := make(chan struct{})
	h.cmdCh <- cmdStop{doneCh: doneCh}
	<-doneCh
}
