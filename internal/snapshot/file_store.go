package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/schema"
)

// FileStore keeps one JSON document per snapshot under <root>/<account>/<id>.json.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore binds the store to root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) accountDir(account string) string {
	return filepath.Join(s.root, strings.ReplaceAll(schema.AccountKey(account), " ", "_"))
}

// Put writes the snapshot unless its document already exists.
func (s *FileStore) Put(ctx context.Context, snap schema.Snapshot) (bool, error) {
	if err := Validate(snap); err != nil {
		return false, err
	}
	if err := contextErr(ctx, "snapshot/put"); err != nil {
		return false, err
	}
	dir := s.accountDir(snap.Account)
	path := filepath.Join(dir, snap.ID+".json")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return false, storageErr("snapshot/put", snap.Account, fmt.Errorf("encode snapshot: %w", err))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, storageErr("snapshot/put", snap.Account, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return false, storageErr("snapshot/put", snap.Account, err)
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return false, storageErr("snapshot/put", snap.Account, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return false, storageErr("snapshot/put", snap.Account, err)
	}
	return true, nil
}

// Get locates the document for id in any account directory.
func (s *FileStore) Get(ctx context.Context, id string) (schema.Snapshot, error) {
	if err := contextErr(ctx, "snapshot/get"); err != nil {
		return schema.Snapshot{}, err
	}
	if id == "" || strings.ContainsAny(id, `/\`) {
		return schema.Snapshot{}, notFound(id)
	}
	matches, err := filepath.Glob(filepath.Join(s.root, "*", id+".json"))
	if err != nil {
		return schema.Snapshot{}, storageErr("snapshot/get", "", err)
	}
	if len(matches) == 0 {
		return schema.Snapshot{}, notFound(id)
	}
	return readSnapshot(matches[0])
}

// Previous scans the account directory for the newest snapshot before the cutoff.
func (s *FileStore) Previous(ctx context.Context, account string, before time.Time) (*schema.Snapshot, error) {
	if err := contextErr(ctx, "snapshot/previous"); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.accountDir(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("snapshot/previous", account, err)
	}
	candidates := make([]schema.Snapshot, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		snap, err := readSnapshot(filepath.Join(s.accountDir(account), name))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, snap)
	}
	return latestBefore(candidates, before), nil
}

func readSnapshot(path string) (schema.Snapshot, error) {
	// #nosec G304 -- path is built from the configured snapshot root.
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Snapshot{}, storageErr("snapshot/read", "", err)
	}
	var snap schema.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return schema.Snapshot{}, storageErr("snapshot/read", "", fmt.Errorf("decode %s: %w", filepath.Base(path), err))
	}
	return snap, nil
}

func storageErr(op, account string, cause error) error {
	return errs.New(op, errs.CodeStorage, errs.WithAccount(account), errs.WithCause(cause))
}
