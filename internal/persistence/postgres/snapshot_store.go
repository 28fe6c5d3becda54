package postgres

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/schema"
	"github.com/coachpo/scribe/internal/snapshot"
)

// SnapshotStore persists canonical snapshots as JSONB documents keyed by snapshot id.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ snapshot.Store = (*SnapshotStore)(nil)

// NewSnapshotStore constructs a SnapshotStore backed by the provided pgx pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const (
	snapshotInsertSQL = `
INSERT INTO snapshots (
    id,
    account_key,
    account,
    requested_mode,
    resolved_mode,
    fetched_at,
    total_xp,
    payload_hash,
    document
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
ON CONFLICT (id) DO NOTHING;
`
	snapshotGetSQL      = `SELECT document FROM snapshots WHERE id = $1;`
	snapshotPreviousSQL = `
SELECT document
FROM snapshots
WHERE account_key = $1 AND fetched_at < $2
ORDER BY fetched_at DESC, id DESC
LIMIT 1;
`
)

// Put inserts snap unless its id already exists.
func (s *SnapshotStore) Put(ctx context.Context, snap schema.Snapshot) (bool, error) {
	if s.pool == nil {
		return false, storageErr("postgres/snapshot-put", snap.Account, errNilPool)
	}
	if err := snapshot.Validate(snap); err != nil {
		return false, err
	}
	document, err := json.Marshal(snap)
	if err != nil {
		return false, storageErr("postgres/snapshot-put", snap.Account, err)
	}
	tag, err := s.pool.Exec(ctx, snapshotInsertSQL,
		snap.ID,
		schema.AccountKey(snap.Account),
		snap.Account,
		string(snap.RequestedMode),
		string(snap.ResolvedMode),
		snap.FetchedAt.UTC(),
		snap.TotalXP,
		snap.PayloadHash,
		document,
	)
	if err != nil {
		return false, storageErr("postgres/snapshot-put", snap.Account, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get loads the snapshot stored under id.
func (s *SnapshotStore) Get(ctx context.Context, id string) (schema.Snapshot, error) {
	if s.pool == nil {
		return schema.Snapshot{}, storageErr("postgres/snapshot-get", "", errNilPool)
	}
	var document []byte
	if err := s.pool.QueryRow(ctx, snapshotGetSQL, id).Scan(&document); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schema.Snapshot{}, errs.New("postgres/snapshot-get", errs.CodeNotFound,
				errs.WithMessage("snapshot "+id+" not found"))
		}
		return schema.Snapshot{}, storageErr("postgres/snapshot-get", "", err)
	}
	return decodeSnapshot(document)
}

// Previous returns the latest snapshot of account fetched strictly before the cutoff.
func (s *SnapshotStore) Previous(ctx context.Context, account string, before time.Time) (*schema.Snapshot, error) {
	if s.pool == nil {
		return nil, storageErr("postgres/snapshot-previous", account, errNilPool)
	}
	var document []byte
	err := s.pool.QueryRow(ctx, snapshotPreviousSQL, schema.AccountKey(account), before.UTC()).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("postgres/snapshot-previous", account, err)
	}
	snap, err := decodeSnapshot(document)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func decodeSnapshot(document []byte) (schema.Snapshot, error) {
	var snap schema.Snapshot
	if err := json.Unmarshal(document, &snap); err != nil {
		return schema.Snapshot{}, storageErr("postgres/snapshot-decode", "", err)
	}
	return snap, nil
}
