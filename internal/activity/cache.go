package activity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// CacheStore persists the last successfully discovered ordering. Save replaces the whole
// ordering; concurrent writers race benignly on which ordering wins.
type CacheStore interface {
	Load(ctx context.Context) (Ordering, bool, error)
	Save(ctx context.Context, ordering Ordering) error
}

// MemoryCacheStore keeps the ordering in process memory.
type MemoryCacheStore struct {
	mu       sync.RWMutex
	ordering *Ordering
}

// NewMemoryCacheStore constructs an empty in-memory cache.
func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{}
}

// Load returns the cached ordering, if any.
func (s *MemoryCacheStore) Load(_ context.Context) (Ordering, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ordering == nil {
		return Ordering{}, false, nil
	}
	return s.ordering.Clone(), true, nil
}

// Save replaces the cached ordering.
func (s *MemoryCacheStore) Save(_ context.Context, ordering Ordering) error {
	clone := ordering.Clone()
	s.mu.Lock()
	s.ordering = &clone
	s.mu.Unlock()
	return nil
}

// FileCacheStore keeps the ordering in a JSON document replaced atomically on save.
type FileCacheStore struct {
	path string
	mu   sync.Mutex
}

// NewFileCacheStore binds the store to path. The parent directory is created on first save.
func NewFileCacheStore(path string) *FileCacheStore {
	return &FileCacheStore{path: path}
}

// Load reads the cached ordering. A missing file is a miss, not an error.
func (s *FileCacheStore) Load(_ context.Context) (Ordering, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Ordering{}, false, nil
	}
	if err != nil {
		return Ordering{}, false, fmt.Errorf("read index cache: %w", err)
	}
	var ordering Ordering
	if err := json.Unmarshal(data, &ordering); err != nil {
		return Ordering{}, false, fmt.Errorf("decode index cache: %w", err)
	}
	return ordering, true, nil
}

// Save writes the ordering to a temp file and renames it over the cache document.
func (s *FileCacheStore) Save(_ context.Context, ordering Ordering) error {
	data, err := json.MarshalIndent(ordering, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index cache: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
