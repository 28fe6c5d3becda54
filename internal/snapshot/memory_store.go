package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/coachpo/scribe/internal/schema"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	byID      *xsync.Map[string, schema.Snapshot]
	byAccount *xsync.Map[string, *history]
}

type history struct {
	mu  sync.RWMutex
	ids []string
}

// NewMemoryStore creates a memory-backed snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      xsync.NewMap[string, schema.Snapshot](),
		byAccount: xsync.NewMap[string, *history](),
	}
}

// Put stores a snapshot once per ID.
func (s *MemoryStore) Put(ctx context.Context, snap schema.Snapshot) (bool, error) {
	if err := Validate(snap); err != nil {
		return false, err
	}
	if err := contextErr(ctx, "snapshot/put"); err != nil {
		return false, err
	}
	if _, loaded := s.byID.LoadOrStore(snap.ID, snap.Clone()); loaded {
		return false, nil
	}
	h, _ := s.byAccount.LoadOrStore(schema.AccountKey(snap.Account), &history{})
	h.mu.Lock()
	h.ids = append(h.ids, snap.ID)
	h.mu.Unlock()
	return true, nil
}

// Get returns the snapshot stored under id.
func (s *MemoryStore) Get(ctx context.Context, id string) (schema.Snapshot, error) {
	if err := contextErr(ctx, "snapshot/get"); err != nil {
		return schema.Snapshot{}, err
	}
	snap, ok := s.byID.Load(id)
	if !ok {
		return schema.Snapshot{}, notFound(id)
	}
	return snap.Clone(), nil
}

// Previous returns the newest snapshot of account fetched before the cutoff.
func (s *MemoryStore) Previous(ctx context.Context, account string, before time.Time) (*schema.Snapshot, error) {
	if err := contextErr(ctx, "snapshot/previous"); err != nil {
		return nil, err
	}
	h, ok := s.byAccount.Load(schema.AccountKey(account))
	if !ok {
		return nil, nil
	}
	h.mu.RLock()
	candidates := make([]schema.Snapshot, 0, len(h.ids))
	for _, id := range h.ids {
		if snap, ok := s.byID.Load(id); ok {
			candidates = append(candidates, snap)
		}
	}
	h.mu.RUnlock()
	return latestBefore(candidates, before), nil
}

// Len reports the number of stored snapshots.
func (s *MemoryStore) Len() int {
	return s.byID.Size()
}
