package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/schema"
)

func sample(account string, at time.Time, xp int64) schema.Snapshot {
	return schema.Snapshot{
		ID:           Identify(account, gamemode.Main, at),
		Account:      account,
		ResolvedMode: gamemode.Main,
		FetchedAt:    at,
		Skills:       []schema.SkillEntry{{Name: "Attack", Level: 90, XP: xp}},
		TotalXP:      xp,
	}
}

func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	prev, err := store.Previous(ctx, "Zelta", t0)
	if err != nil || prev != nil {
		t.Fatalf("expected no previous snapshot, got %v, %v", prev, err)
	}

	first := sample("Zelta", t0, 100)
	created, err := store.Put(ctx, first)
	if err != nil || !created {
		t.Fatalf("first put: created=%v err=%v", created, err)
	}
	created, err = store.Put(ctx, first)
	if err != nil || created {
		t.Fatalf("repeated put must be idempotent: created=%v err=%v", created, err)
	}

	second := sample("zelta", t0.Add(time.Hour), 200)
	if _, err := store.Put(ctx, second); err != nil {
		t.Fatalf("second put: %v", err)
	}
	if _, err := store.Put(ctx, sample("Other", t0.Add(30*time.Minute), 5)); err != nil {
		t.Fatalf("other put: %v", err)
	}

	prev, err = store.Previous(ctx, "ZELTA", t0.Add(2*time.Hour))
	if err != nil || prev == nil || prev.ID != second.ID {
		t.Fatalf("expected second snapshot as previous, got %+v, %v", prev, err)
	}
	prev, err = store.Previous(ctx, "Zelta", second.FetchedAt)
	if err != nil || prev == nil || prev.ID != first.ID {
		t.Fatalf("previous must be strictly before cutoff, got %+v, %v", prev, err)
	}

	got, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalXP != 100 || !got.FetchedAt.Equal(t0) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if _, err := store.Get(ctx, "missing"); !errs.Is(err, errs.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Put(ctx, schema.Snapshot{Account: "Zelta"}); !errs.Is(err, errs.CodeInvalid) {
		t.Fatalf("expected invalid snapshot error, got %v", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStoreContract(t *testing.T) {
	storeContract(t, NewFileStore(t.TempDir()))
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	snap := sample("Zelta", time.Now().UTC(), 1)
	if _, err := store.Put(context.Background(), snap); err != nil {
		t.Fatalf("put: %v", err)
	}
	snap.Skills[0].XP = 999
	got, _ := store.Get(context.Background(), snap.ID)
	if got.Skills[0].XP != 1 {
		t.Fatalf("store shares memory with caller")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one record, got %d", store.Len())
	}
}

func TestStoreRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryStore().Put(ctx, sample("Zelta", time.Now(), 1)); !errs.Is(err, errs.CodeCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}
