package modecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/coachpo/scribe/internal/gamemode"
)

// Entry is the last mode that successfully resolved for an account.
type Entry struct {
	Account     string        `json:"account"`
	DisplayName string        `json:"display_name"`
	Mode        gamemode.Mode `json:"mode"`
	Endpoint    string        `json:"endpoint"`
	DetectedAt  time.Time     `json:"detected_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Store is the persistence collaborator behind the cache. Put replaces the whole entry for
// entry.Account; keys passed to Get are already normalized.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
}

// MemoryStore keeps entries in a concurrent map for the life of the process.
type MemoryStore struct {
	entries *xsync.Map[string, Entry]
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: xsync.NewMap[string, Entry]()}
}

// Get returns the entry stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	entry, ok := s.entries.Load(key)
	return entry, ok, nil
}

// Put replaces the entry for entry.Account.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.entries.Store(entry.Account, entry)
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	return s.entries.Size()
}

// FileStore keeps every entry in one JSON document keyed by account. Each Put rewrites the
// document through a temp file and rename.
type FileStore struct {
	path string

	mu      sync.Mutex
	loaded  bool
	entries map[string]Entry
}

// NewFileStore binds the store to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns the entry stored under key.
func (s *FileStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return Entry{}, false, err
	}
	entry, ok := s.entries[key]
	return entry, ok, nil
}

// Put replaces the entry for entry.Account and rewrites the document.
func (s *FileStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	next := make(map[string]Entry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	next[entry.Account] = entry

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mode cache: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.entries = make(map[string]Entry)
	case err != nil:
		return fmt.Errorf("read mode cache: %w", err)
	default:
		entries := make(map[string]Entry)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("decode mode cache: %w", err)
			}
		}
		s.entries = entries
	}
	s.loaded = true
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mode cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write mode cache: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace mode cache: %w", err)
	}
	return nil
}
