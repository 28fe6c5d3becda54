package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/modecache"
)

// ModeCacheStore persists the last resolved mode per account.
type ModeCacheStore struct {
	pool *pgxpool.Pool
}

var _ modecache.Store = (*ModeCacheStore)(nil)

// NewModeCacheStore constructs a ModeCacheStore backed by the provided pgx pool.
func NewModeCacheStore(pool *pgxpool.Pool) *ModeCacheStore {
	return &ModeCacheStore{pool: pool}
}

const (
	modeCacheUpsertSQL = `
INSERT INTO mode_cache (
    account_key,
    display_name,
    mode,
    endpoint,
    detected_at,
    updated_at
)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (account_key) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    mode = EXCLUDED.mode,
    endpoint = EXCLUDED.endpoint,
    detected_at = EXCLUDED.detected_at,
    updated_at = EXCLUDED.updated_at;
`
	modeCacheGetSQL = `
SELECT account_key, display_name, mode, endpoint, detected_at, updated_at
FROM mode_cache
WHERE account_key = $1;
`
)

// Get returns the entry stored under key.
func (s *ModeCacheStore) Get(ctx context.Context, key string) (modecache.Entry, bool, error) {
	if s.pool == nil {
		return modecache.Entry{}, false, storageErr("postgres/modecache-get", key, errNilPool)
	}
	var (
		entry modecache.Entry
		mode  string
	)
	err := s.pool.QueryRow(ctx, modeCacheGetSQL, key).Scan(
		&entry.Account, &entry.DisplayName, &mode, &entry.Endpoint, &entry.DetectedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return modecache.Entry{}, false, nil
		}
		return modecache.Entry{}, false, storageErr("postgres/modecache-get", key, err)
	}
	entry.Mode = gamemode.Mode(mode)
	entry.DetectedAt = entry.DetectedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, true, nil
}

// Put replaces the whole entry for entry.Account.
func (s *ModeCacheStore) Put(ctx context.Context, entry modecache.Entry) error {
	if s.pool == nil {
		return storageErr("postgres/modecache-put", entry.Account, errNilPool)
	}
	if _, err := s.pool.Exec(ctx, modeCacheUpsertSQL,
		entry.Account, entry.DisplayName, string(entry.Mode), entry.Endpoint,
		entry.DetectedAt.UTC(), entry.UpdatedAt.UTC()); err != nil {
		return storageErr("postgres/modecache-put", entry.Account, err)
	}
	return nil
}
