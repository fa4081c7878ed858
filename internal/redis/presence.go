package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// activeWindow is how long after its last heartbeat a voter still counts as
// active. Matches the dashboard's "active users in the last 15 minutes".
const activeWindow = 15 * time.Minute

// PresenceStore tracks voter activity per room in a Redis sorted set keyed by
// room id, scored by last-heartbeat time. Counting active voters is a range
// count over the window; stale members are pruned on each touch.
type PresenceStore struct {
	rdb   *goredis.Client
	clock clockwork.Clock
}

func NewPresenceStore(rdb *goredis.Client, clock clockwork.Clock) *PresenceStore {
	return &PresenceStore{rdb: rdb, clock: clock}
}

func presenceKey(roomID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", roomID)
}

// Touch records a heartbeat for voterID in roomID.
func (s *PresenceStore) Touch(ctx context.Context, roomID uuid.UUID, voterID string) error {
	now := s.clock.Now()
	key := presenceKey(roomID)

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixMilli()), Member: voterID})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-activeWindow).UnixMilli(), 10))
	pipe.Expire(ctx, key, activeWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}
	return nil
}

// CountActive returns how many voters heartbeated within the active window.
func (s *PresenceStore) CountActive(ctx context.Context, roomID uuid.UUID) (int, error) {
	min := strconv.FormatInt(s.clock.Now().Add(-activeWindow).UnixMilli(), 10)
	n, err := s.rdb.ZCount(ctx, presenceKey(roomID), min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count presence: %w", err)
	}
	return int(n), nil
}

// Forget drops all presence data for a room.
func (s *PresenceStore) Forget(ctx context.Context, roomID uuid.UUID) error {
	if err := s.rdb.Del(ctx, presenceKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}
