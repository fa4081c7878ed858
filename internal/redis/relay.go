package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/jukevote/internal/domain"
	"github.com/pscheid92/jukevote/internal/metrics"
)

const relayChannel = "room:events"

// EventRelay fans room events out to every running instance over a Redis
// pub/sub channel. Voters connect to whichever instance the load balancer
// picks, so an event raised on one instance must reach the sockets held by
// the others. Each relay tags outgoing messages with its instance id and
// drops its own messages on receive.
type EventRelay struct {
	rdb        *goredis.Client
	local      domain.Publisher
	instanceID string
}

type relayEnvelope struct {
	Instance string       `json:"instance"`
	RoomID   uuid.UUID    `json:"roomId"`
	Event    domain.Event `json:"event"`
}

func NewEventRelay(rdb *goredis.Client, local domain.Publisher) *EventRelay {
	return &EventRelay{
		rdb:        rdb,
		local:      local,
		instanceID: uuid.NewString(),
	}
}

// Publish delivers the event to local clients and broadcasts it to peers.
func (r *EventRelay) Publish(roomID uuid.UUID, event domain.Event) {
	r.local.Publish(roomID, event)

	payload, err := json.Marshal(relayEnvelope{
		Instance: r.instanceID,
		RoomID:   roomID,
		Event:    event,
	})
	if err != nil {
		slog.Error("Failed to encode relay message", "room_id", roomID.String(), "error", err)
		return
	}

	if err := r.rdb.Publish(context.Background(), relayChannel, payload).Err(); err != nil {
		slog.Warn("Failed to publish relay message", "room_id", roomID.String(), "error", err)
		return
	}
	metrics.RelayMessagesPublished.Inc()
}

// Start listens for events from other instances and forwards them to local
// clients. Blocks until ctx is cancelled.
func (r *EventRelay) Start(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, relayChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			r.handleMessage(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (r *EventRelay) handleMessage(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("Invalid relay message", "error", err)
		return
	}
	if env.Instance == r.instanceID {
		return
	}

	metrics.RelayMessagesReceived.Inc()
	r.local.Publish(env.RoomID, env.Event)
}
