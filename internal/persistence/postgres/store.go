// Package postgres implements the snapshot, mode-cache, and activity-index stores on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/scribe/errs"
)

var errNilPool = errors.New("nil pool")

// Store groups the repositories sharing one pgx pool.
type Store struct {
	pool *pgxpool.Pool

	Snapshots *SnapshotStore
	ModeCache *ModeCacheStore
	Activity  *ActivityCacheStore
}

// New constructs the repositories over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		Snapshots: NewSnapshotStore(pool),
		ModeCache: NewModeCacheStore(pool),
		Activity:  NewActivityCacheStore(pool),
	}
}

// Connect opens a pool for dsn, verifies connectivity, and registers pool gauges.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errs.New("postgres/connect", errs.CodeFatalConfig, errs.WithMessage("database dsn required"))
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storageErr("postgres/connect", "", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageErr("postgres/connect", "", err)
	}
	ObservePoolMetrics(pool, "primary")
	return New(pool), nil
}

// Pool exposes the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func storageErr(op, account string, err error) error {
	code := errs.CodeStorage
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = errs.CodeCancelled
	}
	return errs.New(op, code, errs.WithAccount(account), errs.WithCause(err))
}
