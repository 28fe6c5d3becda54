package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/hiscore"
	"github.com/coachpo/scribe/internal/modecache"
	"github.com/coachpo/scribe/internal/retry"
)

type scriptedFetcher struct {
	mu       sync.Mutex
	outcomes map[gamemode.Mode][]hiscore.Kind
	overall  map[gamemode.Mode]int64
	calls    []gamemode.Mode
}

func (f *scriptedFetcher) Fetch(_ context.Context, account string, mode gamemode.Mode) hiscore.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, mode)
	kind := hiscore.NotFound
	if script := f.outcomes[mode]; len(script) > 0 {
		kind = script[0]
		if len(script) > 1 {
			f.outcomes[mode] = script[1:]
		}
	}
	out := hiscore.Outcome{Kind: kind, Mode: mode, Endpoint: "https://example/" + string(mode) + "?player=" + account, Latency: time.Millisecond}
	switch kind {
	case hiscore.Found:
		xp := f.overall[mode]
		out.Payload = hiscore.Payload{Rows: [][]int64{{1, 100, xp}}}
	case hiscore.Transient:
		out.Err = errs.New("hiscore/fetch", errs.CodeTransient, errs.WithHTTP(503))
	}
	return out
}

func (f *scriptedFetcher) Calls() []gamemode.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gamemode.Mode(nil), f.calls...)
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Microsecond, MaxInterval: time.Microsecond, Multiplier: 1}
}

func newCache(t *testing.T) *modecache.Cache {
	t.Helper()
	c, err := modecache.New(modecache.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestBuildProbeOrder(t *testing.T) {
	require.Equal(t, gamemode.Priority, BuildProbeOrder("", ""))
	require.Equal(t,
		[]gamemode.Mode{gamemode.Hardcore, gamemode.Ironman, gamemode.Main, gamemode.Ultimate, gamemode.Deadman, gamemode.Tournament, gamemode.Seasonal},
		BuildProbeOrder(gamemode.Hardcore, gamemode.Ironman))
	require.Equal(t,
		[]gamemode.Mode{gamemode.Ironman, gamemode.Main, gamemode.Hardcore, gamemode.Ultimate, gamemode.Deadman, gamemode.Tournament, gamemode.Seasonal},
		BuildProbeOrder(gamemode.Ironman, gamemode.Ironman))
	require.Equal(t, gamemode.Priority, BuildProbeOrder("", "bogus"))
	require.Len(t, BuildProbeOrder(gamemode.Seasonal, gamemode.Deadman), len(gamemode.Priority))
}

func TestResolveDeironedAccount(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: map[gamemode.Mode][]hiscore.Kind{gamemode.Main: {hiscore.Found}}}
	cache := newCache(t)
	r := New(fetcher, cache, Config{Retry: fastRetry()}, nil)

	res, err := r.Resolve(context.Background(), "Zelta", gamemode.Ironman)
	require.NoError(t, err)
	require.Equal(t, gamemode.Ironman, res.Requested)
	require.Equal(t, gamemode.Main, res.Resolved)
	require.True(t, res.ModeChanged())
	require.Equal(t, []gamemode.Mode{gamemode.Ironman, gamemode.Main}, fetcher.Calls())
	require.Equal(t, 2*time.Millisecond, res.Latency)

	entry, ok := cache.Lookup(context.Background(), "zelta")
	require.True(t, ok)
	require.Equal(t, gamemode.Main, entry.Mode)
}

func TestResolveDeadHardcoreResolvesToMain(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: map[gamemode.Mode][]hiscore.Kind{gamemode.Main: {hiscore.Found}}}
	res, err := New(fetcher, nil, Config{Retry: fastRetry()}, nil).Resolve(context.Background(), "Zelta", gamemode.Hardcore)
	require.NoError(t, err)
	require.Equal(t, gamemode.Hardcore, res.Requested)
	require.Equal(t, gamemode.Main, res.Resolved)
}

func TestResolveUsesCachedModeSecond(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: map[gamemode.Mode][]hiscore.Kind{gamemode.Ultimate: {hiscore.Found}}}
	cache := newCache(t)
	cache.Record(context.Background(), "Zelta", gamemode.Ultimate, "uim", time.Now())

	res, err := New(fetcher, cache, Config{Retry: fastRetry()}, nil).Resolve(context.Background(), "Zelta", "")
	require.NoError(t, err)
	require.Equal(t, gamemode.Ultimate, res.Resolved)
	require.Equal(t, gamemode.Ultimate, res.Cached)
	require.Equal(t, []gamemode.Mode{gamemode.Ultimate}, fetcher.Calls())
	require.False(t, res.ModeChanged())
}

func TestResolveNotFoundEverywhere(t *testing.T) {
	fetcher := &scriptedFetcher{}
	_, err := New(fetcher, nil, Config{Retry: fastRetry()}, nil).Resolve(context.Background(), "Nobody", "")
	require.True(t, errs.Is(err, errs.CodeNotFound), err.Error())
	require.Equal(t, "no data for any mode", errs.Message(err))
	require.Equal(t, gamemode.Priority, fetcher.Calls())
}

func TestResolveRetriesTransientThenMovesOn(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: map[gamemode.Mode][]hiscore.Kind{
		gamemode.Ironman: {hiscore.Transient, hiscore.Transient, hiscore.Transient},
		gamemode.Main:    {hiscore.Found},
	}}
	res, err := New(fetcher, nil, Config{Retry: fastRetry()}, nil).Resolve(context.Background(), "Zelta", gamemode.Ironman)
	require.NoError(t, err)
	require.Equal(t, gamemode.Main, res.Resolved)
	require.Equal(t, 3, res.Attempts[0].Tries)
	require.Equal(t, hiscore.Transient, res.Attempts[0].Kind)
	require.Equal(t, []gamemode.Mode{gamemode.Ironman, gamemode.Ironman, gamemode.Ironman, gamemode.Main}, fetcher.Calls())
}

func TestResolveTransientRecoversWithinBudget(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: map[gamemode.Mode][]hiscore.Kind{
		gamemode.Main: {hiscore.Transient, hiscore.Found},
	}}
	res, err := New(fetcher, nil, Config{Retry: fastRetry()}, nil).Resolve(context.Background(), "Zelta", gamemode.Main)
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempts[0].Tries)
	require.Equal(t, gamemode.Main, res.Resolved)
}

func TestResolveTransientDistinguishableFromNotFound(t *testing.T) {
	fetcher := &scriptedFetcher{outcomes: map[gamemode.Mode][]hiscore.Kind{
		gamemode.Deadman: {hiscore.Transient},
	}}
	_, err := New(fetcher, nil, Config{Retry: fastRetry()}, nil).Resolve(context.Background(), "Zelta", "")
	require.True(t, errs.Is(err, errs.CodeTransient), err.Error())
	var transient *errs.E
	require.True(t, errors.As(err, &transient))
	require.Equal(t, "Zelta", transient.Account)
}

func TestResolveRejectsBadInput(t *testing.T) {
	r := New(&scriptedFetcher{}, nil, Config{}, nil)
	_, err := r.Resolve(context.Background(), "  ", "")
	require.True(t, errs.Is(err, errs.CodeInvalid))
	_, err = r.Resolve(context.Background(), "Zelta", "pvp")
	require.True(t, errs.Is(err, errs.CodeInvalid))
}

func TestResolveStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &scriptedFetcher{}
	_, err := New(fetcher, nil, Config{Retry: fastRetry()}, nil).Resolve(ctx, "Zelta", "")
	require.True(t, errs.Is(err, errs.CodeTransient))
	require.Empty(t, fetcher.Calls())
}

func TestFallenHardcorePrefersIronmanWithMoreXP(t *testing.T) {
	fetcher := &scriptedFetcher{
		outcomes: map[gamemode.Mode][]hiscore.Kind{
			gamemode.Hardcore: {hiscore.Found},
			gamemode.Ironman:  {hiscore.Found},
		},
		overall: map[gamemode.Mode]int64{gamemode.Hardcore: 1_000_000, gamemode.Ironman: 1_200_000},
	}
	r := New(fetcher, nil, Config{Retry: fastRetry(), ProbeFallenHardcore: true}, nil)
	res, err := r.Resolve(context.Background(), "Zelta", gamemode.Hardcore)
	require.NoError(t, err)
	require.Equal(t, gamemode.Ironman, res.Resolved)
	require.True(t, res.ModeChanged())
	require.Len(t, res.Attempts, 2)
}

func TestFallenHardcoreKeepsLivingHardcore(t *testing.T) {
	fetcher := &scriptedFetcher{
		outcomes: map[gamemode.Mode][]hiscore.Kind{
			gamemode.Hardcore: {hiscore.Found},
			gamemode.Ironman:  {hiscore.Found},
		},
		overall: map[gamemode.Mode]int64{gamemode.Hardcore: 1_000_000, gamemode.Ironman: 1_000_000},
	}
	r := New(fetcher, nil, Config{Retry: fastRetry(), ProbeFallenHardcore: true}, nil)
	res, err := r.Resolve(context.Background(), "Zelta", gamemode.Hardcore)
	require.NoError(t, err)
	require.Equal(t, gamemode.Hardcore, res.Resolved)
	require.False(t, res.ModeChanged())
}
