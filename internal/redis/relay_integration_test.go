package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jukevote/internal/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	rooms  []uuid.UUID
}

func (p *recordingPublisher) Publish(roomID uuid.UUID, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append(p.rooms, roomID)
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordingPublisher) countForRoom(roomID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.rooms {
		if r == roomID {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) find(roomID uuid.UUID) (domain.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.rooms {
		if r == roomID {
			return p.events[i], true
		}
	}
	return domain.Event{}, false
}

// startRelay runs a relay listener and waits until its subscription is live
// by publishing warm-up messages from a second instance until one arrives.
func startRelay(t *testing.T, relay *EventRelay, local *recordingPublisher) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go relay.Start(ctx)

	probe := NewEventRelay(testClient, &recordingPublisher{})
	before := local.count()
	require.Eventually(t, func() bool {
		probe.Publish(uuid.New(), domain.Event{Type: "warmup"})
		return local.count() > before
	}, 5*time.Second, 50*time.Millisecond, "relay subscription never became live")
}

func TestEventRelay_FansOutToPeers(t *testing.T) {
	localA := &recordingPublisher{}
	localB := &recordingPublisher{}
	relayA := NewEventRelay(testClient, localA)
	relayB := NewEventRelay(testClient, localB)

	startRelay(t, relayA, localA)
	startRelay(t, relayB, localB)

	roomID := uuid.New()
	songID := uuid.New()

	relayA.Publish(roomID, domain.VoteUpdateEvent(songID, 3))

	// The publishing instance delivers locally without a Redis round trip.
	gotEvent, ok := localA.find(roomID)
	require.True(t, ok)
	assert.Equal(t, domain.EventVoteUpdate, gotEvent.Type)

	// The peer receives it over the channel.
	require.Eventually(t, func() bool {
		_, ok := localB.find(roomID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	gotEvent, _ = localB.find(roomID)
	assert.Equal(t, songID, gotEvent.SongID)
	assert.Equal(t, 3, gotEvent.VoteCount)
}

func TestEventRelay_IgnoresOwnMessages(t *testing.T) {
	local := &recordingPublisher{}
	relay := NewEventRelay(testClient, local)

	startRelay(t, relay, local)

	roomID := uuid.New()
	relay.Publish(roomID, domain.NowPlayingEvent(&domain.Song{ID: uuid.New()}))

	// Exactly one local delivery; the echoed pub/sub message is dropped.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, local.countForRoom(roomID))
}

func TestEventRelay_InvalidPayloadIgnored(t *testing.T) {
	local := &recordingPublisher{}
	relay := NewEventRelay(testClient, local)

	startRelay(t, relay, local)

	require.NoError(t, testClient.Publish(context.Background(), relayChannel, "not json").Err())

	// A peer message published after the garbage still arrives, so the
	// listener survived it.
	peer := NewEventRelay(testClient, &recordingPublisher{})
	sentinelRoom := uuid.New()
	peer.Publish(sentinelRoom, domain.Event{Type: "sentinel"})

	require.Eventually(t, func() bool {
		_, ok := local.find(sentinelRoom)
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, local.countForRoom(sentinelRoom))
}
