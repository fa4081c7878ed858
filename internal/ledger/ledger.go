// Package ledger implements the durable vote record.
//
// One vote per (song, voter) pair, ever. Deduplication rests on the storage
// layer's uniqueness constraint rather than in-process locking, so multiple
// server processes may race on the same pair and exactly one insert wins.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/pscheid92/jukevote/internal/metrics"
)

// VoteStore is the subset of storage operations the ledger needs.
type VoteStore interface {
	InsertIfAbsent(ctx context.Context, songID uuid.UUID, voterID string) (bool, error)
	Count(ctx context.Context, songID uuid.UUID) (int, error)
}

// Result is the outcome of a cast attempt.
type Result struct {
	Accepted bool
	NewTotal int
}

// Ledger accepts or rejects votes and reports per-song totals.
type Ledger struct {
	store VoteStore
}

func New(store VoteStore) *Ledger {
	return &Ledger{store: store}
}

// CastVote records one vote for songID by voterID. A repeat vote from the
// same voter is not an error: it returns Accepted=false with the unchanged
// total, so retrying a vote is always safe.
func (l *Ledger) CastVote(ctx context.Context, songID uuid.UUID, voterID string) (Result, error) {
	inserted, err := l.store.InsertIfAbsent(ctx, songID, voterID)
	if err != nil {
		metrics.VotesTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}

	total, err := l.store.Count(ctx, songID)
	if err != nil {
		// The vote row may already be durable; the caller can retry the
		// whole cast, which the uniqueness constraint keeps idempotent.
		metrics.VotesTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}

	if inserted {
		metrics.VotesTotal.WithLabelValues("accepted").Inc()
	} else {
		metrics.VotesTotal.WithLabelValues("duplicate").Inc()
	}

	return Result{Accepted: inserted, NewTotal: total}, nil
}
