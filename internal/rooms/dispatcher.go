// Package rooms serializes all vote and playback mutations of a room.
//
// Each active room gets one worker goroutine that processes commands in
// arrival order, so a vote's full pipeline (record, re-count, promotion
// check, broadcast) runs to completion before the next command of the same
// room starts. Different rooms never wait on each other. Workers are
// created on first use and retire after an idle period.
package rooms

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jukevote/internal/domain"
	"github.com/pscheid92/jukevote/internal/ledger"
	"github.com/pscheid92/jukevote/internal/metrics"
	"github.com/pscheid92/jukevote/internal/promotion"
)

const workerIdleTimeout = 2 * time.Minute

var errStopped = errors.New("room dispatcher stopped")

// --- Command types ---

// Commands carry the room snapshot they were submitted with. Workers are
// keyed by host, but the active playlist can change between commands, so a
// worker must never cache room identity across commands.
type roomCmd interface{ roomCmd() }

type cmdVote struct {
	ctx     context.Context
	room    domain.Room
	songID  uuid.UUID
	voterID string
	replyCh chan voteReply
}

func (cmdVote) roomCmd() {}

type voteReply struct {
	result ledger.Result
	err    error
}

type cmdPlayNow struct {
	ctx     context.Context
	room    domain.Room
	songID  uuid.UUID
	replyCh chan error
}

func (cmdPlayNow) roomCmd() {}

type cmdAnnounce struct {
	room domain.Room
	song *domain.Song
}

func (cmdAnnounce) roomCmd() {}

// --- Dispatcher ---

// Dispatcher routes room commands to per-room workers.
type Dispatcher struct {
	votes     *ledger.Ledger
	promoter  *promotion.Controller
	publisher domain.Publisher
	presence  domain.PresenceStore
	clock     clockwork.Clock

	mu      sync.Mutex
	workers map[uuid.UUID]*worker
	stopped bool
	wg      sync.WaitGroup
}

type worker struct {
	hostID  uuid.UUID
	cmdCh   chan roomCmd
	pending atomic.Int64
}

func NewDispatcher(votes *ledger.Ledger, promoter *promotion.Controller, publisher domain.Publisher, presence domain.PresenceStore, clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{
		votes:     votes,
		promoter:  promoter,
		publisher: publisher,
		presence:  presence,
		clock:     clock,
		workers:   make(map[uuid.UUID]*worker),
	}
}

// CastVote runs the vote pipeline for a room and blocks until it finished.
func (d *Dispatcher) CastVote(ctx context.Context, room domain.Room, songID uuid.UUID, voterID string) (ledger.Result, error) {
	replyCh := make(chan voteReply, 1)
	if err := d.submit(room, cmdVote{ctx: ctx, room: room, songID: songID, voterID: voterID, replyCh: replyCh}); err != nil {
		return ledger.Result{}, err
	}
	select {
	case reply := <-replyCh:
		return reply.result, reply.err
	case <-ctx.Done():
		return ledger.Result{}, ctx.Err()
	}
}

// PlayNow promotes a song immediately, bypassing the tallies.
func (d *Dispatcher) PlayNow(ctx context.Context, room domain.Room, songID uuid.UUID) error {
	replyCh := make(chan error, 1)
	if err := d.submit(room, cmdPlayNow{ctx: ctx, room: room, songID: songID, replyCh: replyCh}); err != nil {
		return err
	}
	select {
	case err := <-replyCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AnnounceSong broadcasts a newly added song through the room's worker so
// the announcement keeps its order relative to in-flight vote updates.
func (d *Dispatcher) AnnounceSong(room domain.Room, song *domain.Song) error {
	return d.submit(room, cmdAnnounce{room: room, song: song})
}

// Stop retires every worker and waits for in-flight commands to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	workers := make([]*worker, 0, len(d.workers))
	for id, w := range d.workers {
		workers = append(workers, w)
		delete(d.workers, id)
	}
	metrics.RoomWorkersActive.Set(0)
	d.mu.Unlock()

	// No new commands can be submitted now; wait for each worker's queue
	// to empty before closing its channel.
	for _, w := range workers {
		for w.pending.Load() > 0 {
			time.Sleep(time.Millisecond)
		}
		close(w.cmdCh)
	}
	d.wg.Wait()
}

func (d *Dispatcher) submit(room domain.Room, cmd roomCmd) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return errStopped
	}

	w, exists := d.workers[room.HostID]
	if !exists {
		w = &worker{hostID: room.HostID, cmdCh: make(chan roomCmd, 64)}
		d.workers[room.HostID] = w
		metrics.RoomWorkersActive.Set(float64(len(d.workers)))
		d.wg.Add(1)
		go d.runWorker(w)
	}
	// Claim a slot under the lock, send outside it: retire refuses to
	// close the channel while pending is nonzero, and the send must not
	// block the lock the worker needs to retire.
	w.pending.Add(1)
	d.mu.Unlock()

	w.cmdCh <- cmd
	return nil
}

// retire removes an idle worker. Returns false when a command slipped in
// while the worker was deciding to quit; the worker then keeps running.
func (d *Dispatcher) retire(w *worker) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	if w.pending.Load() > 0 {
		return false
	}
	delete(d.workers, w.hostID)
	metrics.RoomWorkersActive.Set(float64(len(d.workers)))
	close(w.cmdCh)
	return true
}

func (d *Dispatcher) runWorker(w *worker) {
	defer d.wg.Done()

	idle := d.clock.NewTimer(workerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case cmd, ok := <-w.cmdCh:
			if !ok {
				return
			}
			d.handle(w, cmd)
			idle.Reset(workerIdleTimeout)
		case <-idle.Chan():
			// The channel is only ever closed while empty, so a
			// successful retire means there is nothing left to do.
			if d.retire(w) {
				return
			}
			idle.Reset(workerIdleTimeout)
		}
	}
}

func (d *Dispatcher) handle(w *worker, cmd roomCmd) {
	defer w.pending.Add(-1)

	switch c := cmd.(type) {
	case cmdVote:
		result, err := d.handleVote(c)
		c.replyCh <- voteReply{result: result, err: err}
	case cmdPlayNow:
		c.replyCh <- d.handlePlayNow(c)
	case cmdAnnounce:
		d.publisher.Publish(c.room.HostID, domain.SongAddedEvent(c.song))
	}
}

func (d *Dispatcher) handleVote(c cmdVote) (ledger.Result, error) {
	room := c.room
	start := d.clock.Now()
	defer func() {
		metrics.VoteProcessingDuration.Observe(d.clock.Since(start).Seconds())
	}()

	result, err := d.votes.CastVote(c.ctx, c.songID, c.voterID)
	if err != nil {
		return ledger.Result{}, err
	}

	if err := d.presence.Touch(c.ctx, room.HostID, c.voterID); err != nil {
		slog.Warn("failed to record voter presence", "room_id", room.HostID, "error", err)
	}

	if !result.Accepted {
		return result, nil
	}

	d.publisher.Publish(room.HostID, domain.VoteUpdateEvent(c.songID, result.NewTotal))

	promoted, err := d.promoter.CheckAfterVote(c.ctx, room.PlaylistID)
	if err != nil {
		slog.Error("promotion check failed", "room_id", room.HostID, "error", err)
		return result, nil
	}
	if promoted != nil {
		d.publisher.Publish(room.HostID, domain.NowPlayingEvent(promoted))
	}
	return result, nil
}

func (d *Dispatcher) handlePlayNow(c cmdPlayNow) error {
	song, err := d.promoter.PlayNow(c.ctx, c.room.PlaylistID, c.songID)
	if err != nil {
		return err
	}
	d.publisher.Publish(c.room.HostID, domain.NowPlayingEvent(song))
	return nil
}

// TouchPresence records voter activity outside the vote path, e.g. on
// heartbeats and connects.
func (d *Dispatcher) TouchPresence(ctx context.Context, roomID uuid.UUID, voterID string) {
	if err := d.presence.Touch(ctx, roomID, voterID); err != nil {
		slog.Warn("failed to record voter presence", "room_id", roomID, "error", err)
	}
}
