package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, attempts, err := Do(context.Background(), fastPolicy(3), func(context.Context, int) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 3, attempts)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	boom := errors.New("boom")
	var waits []time.Duration
	_, attempts, err := Do(context.Background(), fastPolicy(3), func(context.Context, int) (int, error) {
		return 0, boom
	}, WithNotify(func(_ int, _ error, wait time.Duration) {
		waits = append(waits, wait)
	}))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, attempts)
	require.Len(t, waits, 2)
}

func TestDoHonoursRetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	_, attempts, err := Do(context.Background(), fastPolicy(5), func(context.Context, int) (int, error) {
		return 0, permanent
	}, WithRetryIf(func(err error) bool { return !errors.Is(err, permanent) }))
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, attempts)
}

func TestDoStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 10, InitialInterval: time.Hour, MaxInterval: time.Hour, Multiplier: 1}
	_, attempts, err := Do(ctx, p, func(context.Context, int) (int, error) {
		cancel()
		return 0, errors.New("timeout")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	_, attempts, err := Do(context.Background(), Policy{}, func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("x")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, attempts)
}

func TestAfterCapsAtMaxInterval(t *testing.T) {
	var waits []time.Duration
	calls := 0
	_, _, err := Do(context.Background(), fastPolicy(2), func(context.Context, int) (int, error) {
		calls++
		if calls == 1 {
			return 0, After(errors.New("429"), time.Minute)
		}
		return 1, nil
	}, WithNotify(func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }))
	require.NoError(t, err)
	require.Equal(t, []time.Duration{2 * time.Millisecond}, waits)
	require.Nil(t, After(nil, time.Second))
}
