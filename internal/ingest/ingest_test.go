package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/activity"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/hiscore"
	"github.com/coachpo/scribe/internal/modecache"
	"github.com/coachpo/scribe/internal/resolver"
	"github.com/coachpo/scribe/internal/retry"
	"github.com/coachpo/scribe/internal/schema"
	"github.com/coachpo/scribe/internal/snapshot"
)

// upstream serves lite payloads for accounts registered under a mode path.
type upstream struct {
	mu     sync.Mutex
	attack map[string][2]int64 // "path|player" -> level, xp
}

func (u *upstream) set(path, player string, level, xp int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.attack[path+"|"+strings.ToLower(player)] = [2]int64{level, xp}
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/m="), "/index_lite.ws")
	u.mu.Lock()
	stats, ok := u.attack[path+"|"+strings.ToLower(r.URL.Query().Get("player"))]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	ordering := activity.StaticOrdering()
	var b strings.Builder
	fmt.Fprintf(&b, "100,%d,%d\n", stats[0]+1000, stats[1]+1_000_000)
	fmt.Fprintf(&b, "200,%d,%d\n", stats[0], stats[1])
	for i := 2; i < len(activity.SkillDescriptors()); i++ {
		b.WriteString("-1,1,-1\n")
	}
	for i := len(activity.SkillDescriptors()); i < ordering.Len(); i++ {
		b.WriteString("-1,-1\n")
	}
	_, _ = w.Write([]byte(b.String()))
}

type fixture struct {
	upstream *upstream
	service  *Service
	store    *snapshot.MemoryStore
	cache    *modecache.Cache
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	up := &upstream{attack: map[string][2]int64{}}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	catalog, err := gamemode.NewCatalog(srv.URL, nil)
	require.NoError(t, err)
	cache, err := modecache.New(modecache.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	client := hiscore.New(catalog, hiscore.Config{Timeout: time.Second}, nil)
	res := resolver.New(client, cache, resolver.Config{Retry: retry.Policy{MaxAttempts: 1}}, nil)
	index := activity.NewIndex(nil, nil)
	store := snapshot.NewMemoryStore()
	return &fixture{upstream: up, service: New(res, index, store, nil), store: store, cache: cache}
}

func TestSnapshotDeadHardcoreResolvesToMain(t *testing.T) {
	f := newFixture(t)
	f.upstream.set("hiscore_oldschool", "Zelta", 90, 5_000_000)

	result, err := f.service.Snapshot(context.Background(), Request{Account: "Zelta", Mode: gamemode.Hardcore})
	require.NoError(t, err)
	require.Equal(t, gamemode.Hardcore, result.RequestedMode)
	require.Equal(t, gamemode.Main, result.ResolvedMode)
	require.True(t, result.ModeChanged())
	require.True(t, result.Snapshot.ModeChanged())
	require.Nil(t, result.Delta)
	require.True(t, result.Created)
	require.Equal(t, schema.IndexStatic, result.Snapshot.IndexSource)
	require.Contains(t, result.Snapshot.Warnings, "activity index degraded: using static ordering")

	attack, ok := result.Snapshot.Skill("Attack")
	require.True(t, ok)
	require.Equal(t, int64(90), attack.Level)
	// unranked skills report level 1 and contribute to the total; Overall does not
	require.Equal(t, int64(90+22), result.Snapshot.TotalLevel)
	require.Equal(t, int64(5_000_000), result.Snapshot.TotalXP)

	entry, ok := f.cache.Lookup(context.Background(), "zelta")
	require.True(t, ok)
	require.Equal(t, gamemode.Main, entry.Mode)
}

func TestSnapshotComputesDeltaAgainstPrevious(t *testing.T) {
	f := newFixture(t)
	f.upstream.set("hiscore_oldschool", "Zelta", 90, 5_000_000)
	first, err := f.service.Snapshot(context.Background(), Request{Account: "Zelta"})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	f.upstream.set("hiscore_oldschool", "Zelta", 91, 5_200_000)
	second, err := f.service.Snapshot(context.Background(), Request{Account: "zelta"})
	require.NoError(t, err)

	require.NotNil(t, second.Delta)
	require.Equal(t, schema.SkillDelta{XP: 200_000, Level: 1}, second.Delta.Skills["Attack"])
	require.Equal(t, int64(200_000), second.Delta.TotalXP)
	require.Equal(t, first.Snapshot.ID, second.Delta.PreviousID)
	require.Greater(t, second.Delta.ElapsedHours, 0.0)
	require.Equal(t, 2, f.store.Len())
}

func TestSnapshotNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Snapshot(context.Background(), Request{Account: "Nobody"})
	require.True(t, errs.Is(err, errs.CodeNotFound), err.Error())
	require.Zero(t, f.store.Len())
}

func TestValidateAccount(t *testing.T) {
	for _, ok := range []string{"Zelta", "Iron Zelta", "a", "abc_def-1234", " Lynx Titan "} {
		require.NoError(t, ValidateAccount(ok), ok)
	}
	for _, bad := range []string{"", "   ", "thirteen_char", "zelta!", "zëlta"} {
		err := ValidateAccount(bad)
		require.True(t, errs.Is(err, errs.CodeInvalid), bad)
	}
}
