package modecache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/scribe/internal/gamemode"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("disk on fire")
}

func (failingStore) Put(context.Context, Entry) error { return errors.New("disk on fire") }

func newCache(t *testing.T, store Store) *Cache {
	t.Helper()
	c, err := New(store, WithMemoSize(16))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestKeyFoldsEquivalentNames(t *testing.T) {
	for _, name := range []string{"Iron Zelta", " iron_zelta ", "IRON-ZELTA", "iron  zelta"} {
		require.Equal(t, "iron zelta", Key(name), name)
	}
	require.Empty(t, Key("   "))
}

func TestRecordThenLookup(t *testing.T) {
	store := NewMemoryStore()
	c := newCache(t, store)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	c.Record(context.Background(), "Zelta", gamemode.Ironman, "https://example/ironman", now)

	entry, ok := c.Lookup(context.Background(), "zelta")
	require.True(t, ok)
	require.Equal(t, gamemode.Ironman, entry.Mode)
	require.Equal(t, "Zelta", entry.DisplayName)
	require.Equal(t, now, entry.DetectedAt)
	require.Equal(t, 1, store.Len())
}

func TestRecordOverwritesWholeEntry(t *testing.T) {
	c := newCache(t, NewMemoryStore())
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Record(context.Background(), "Zelta", gamemode.Hardcore, "hc", t0)
	c.Record(context.Background(), "Zelta", gamemode.Hardcore, "hc", t0.Add(time.Hour))
	entry, _ := c.Lookup(context.Background(), "Zelta")
	require.Equal(t, t0, entry.DetectedAt)
	require.Equal(t, t0.Add(time.Hour), entry.UpdatedAt)

	c.Record(context.Background(), "Zelta", gamemode.Main, "main", t0.Add(2*time.Hour))
	entry, _ = c.Lookup(context.Background(), "Zelta")
	require.Equal(t, gamemode.Main, entry.Mode)
	require.Equal(t, "main", entry.Endpoint)
	require.Equal(t, t0.Add(2*time.Hour), entry.DetectedAt)
}

func TestLookupReadsThroughToStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), Entry{Account: "zelta", Mode: gamemode.Ultimate}))

	entry, ok := newCache(t, store).Lookup(context.Background(), "Zelta")
	require.True(t, ok)
	require.Equal(t, gamemode.Ultimate, entry.Mode)
}

func TestStoreFailuresAreMisses(t *testing.T) {
	c := newCache(t, failingStore{})
	_, ok := c.Lookup(context.Background(), "Zelta")
	require.False(t, ok)

	entry := c.Record(context.Background(), "Zelta", gamemode.Main, "main", time.Now())
	require.Equal(t, gamemode.Main, entry.Mode)
	// memo still serves the recorded hint
	_, ok = c.Lookup(context.Background(), "Zelta")
	require.True(t, ok)
}

func TestConcurrentRecordsLastWriteWins(t *testing.T) {
	c := newCache(t, NewMemoryStore())
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mode := gamemode.Main
			if i%2 == 0 {
				mode = gamemode.Ironman
			}
			c.Record(context.Background(), "Zelta", mode, string(mode), time.Now())
		}(i)
	}
	wg.Wait()
	entry, ok := c.Lookup(context.Background(), "Zelta")
	require.True(t, ok)
	require.Contains(t, []gamemode.Mode{gamemode.Main, gamemode.Ironman}, entry.Mode)
	require.Equal(t, string(entry.Mode), entry.Endpoint)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode_cache.json")
	first := NewFileStore(path)
	require.NoError(t, first.Put(context.Background(), Entry{Account: "zelta", Mode: gamemode.Deadman}))
	require.NoError(t, first.Put(context.Background(), Entry{Account: "lynx titan", Mode: gamemode.Main}))

	second := NewFileStore(path)
	entry, ok, err := second.Get(context.Background(), "zelta")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, gamemode.Deadman, entry.Mode)

	_, ok, err = second.Get(context.Background(), "nobody")
	require.NoError(t, err)
	require.False(t, ok)
}
