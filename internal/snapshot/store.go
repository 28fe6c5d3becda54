// Package snapshot defines snapshot identity and storage primitives.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/schema"
)

// Store persists canonical snapshots keyed by ID.
type Store interface {
	// Put stores snap unless a snapshot with the same ID exists. created reports whether a new
	// record was written.
	Put(ctx context.Context, snap schema.Snapshot) (created bool, err error)
	// Get returns the snapshot with id or a not_found error.
	Get(ctx context.Context, id string) (schema.Snapshot, error)
	// Previous returns the latest snapshot of account fetched strictly before the given time,
	// or nil when there is none.
	Previous(ctx context.Context, account string, before time.Time) (*schema.Snapshot, error)
}

// Validate ensures a snapshot can be stored.
func Validate(snap schema.Snapshot) error {
	if strings.TrimSpace(snap.ID) == "" {
		return errs.New("snapshot/validate", errs.CodeInvalid, errs.WithMessage("snapshot id required"))
	}
	if schema.AccountKey(snap.Account) == "" {
		return errs.New("snapshot/validate", errs.CodeInvalid, errs.WithMessage("snapshot account required"))
	}
	if snap.FetchedAt.IsZero() {
		return errs.New("snapshot/validate", errs.CodeInvalid,
			errs.WithAccount(snap.Account), errs.WithMessage("snapshot fetch time required"))
	}
	return nil
}

func notFound(id string) error {
	return errs.New("snapshot/not-found", errs.CodeNotFound, errs.WithMessage("snapshot "+id+" not found"))
}

func contextErr(ctx context.Context, op string) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return errs.New(op, errs.CodeCancelled, errs.WithCause(ctx.Err()))
	default:
		return nil
	}
}

// latestBefore picks the newest snapshot strictly before the cutoff.
func latestBefore(candidates []schema.Snapshot, before time.Time) *schema.Snapshot {
	var best *schema.Snapshot
	for i := range candidates {
		c := candidates[i]
		if !c.FetchedAt.Before(before) {
			continue
		}
		if best == nil || c.FetchedAt.After(best.FetchedAt) || (c.FetchedAt.Equal(best.FetchedAt) && c.ID > best.ID) {
			clone := c.Clone()
			best = &clone
		}
	}
	return best
}
