package postgres

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/scribe/internal/activity"
	"github.com/coachpo/scribe/internal/schema"
)

// ActivityCacheStore keeps the last discovered activity ordering in a single row.
type ActivityCacheStore struct {
	pool *pgxpool.Pool
}

var _ activity.CacheStore = (*ActivityCacheStore)(nil)

// NewActivityCacheStore constructs an ActivityCacheStore backed by the provided pgx pool.
func NewActivityCacheStore(pool *pgxpool.Pool) *ActivityCacheStore {
	return &ActivityCacheStore{pool: pool}
}

const (
	activitySaveSQL = `
INSERT INTO activity_index (singleton, source, resolved_at, descriptors, updated_at)
VALUES (TRUE, $1, $2, $3::jsonb, NOW())
ON CONFLICT (singleton) DO UPDATE SET
    source = EXCLUDED.source,
    resolved_at = EXCLUDED.resolved_at,
    descriptors = EXCLUDED.descriptors,
    updated_at = NOW();
`
	activityLoadSQL = `SELECT source, resolved_at, descriptors FROM activity_index WHERE singleton;`
)

// Load returns the cached ordering, if any.
func (s *ActivityCacheStore) Load(ctx context.Context) (activity.Ordering, bool, error) {
	if s.pool == nil {
		return activity.Ordering{}, false, storageErr("postgres/activity-load", "", errNilPool)
	}
	var (
		ordering    activity.Ordering
		source      string
		descriptors []byte
	)
	if err := s.pool.QueryRow(ctx, activityLoadSQL).Scan(&source, &ordering.ResolvedAt, &descriptors); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return activity.Ordering{}, false, nil
		}
		return activity.Ordering{}, false, storageErr("postgres/activity-load", "", err)
	}
	if err := json.Unmarshal(descriptors, &ordering.Descriptors); err != nil {
		return activity.Ordering{}, false, storageErr("postgres/activity-load", "", err)
	}
	ordering.Source = schema.IndexSource(source)
	ordering.ResolvedAt = ordering.ResolvedAt.UTC()
	return ordering, true, nil
}

// Save replaces the cached ordering.
func (s *ActivityCacheStore) Save(ctx context.Context, ordering activity.Ordering) error {
	if s.pool == nil {
		return storageErr("postgres/activity-save", "", errNilPool)
	}
	descriptors, err := json.Marshal(ordering.Descriptors)
	if err != nil {
		return storageErr("postgres/activity-save", "", err)
	}
	if _, err := s.pool.Exec(ctx, activitySaveSQL, string(ordering.Source), ordering.ResolvedAt.UTC(), descriptors); err != nil {
		return storageErr("postgres/activity-save", "", err)
	}
	return nil
}
