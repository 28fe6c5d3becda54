package batch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/ingest"
	"github.com/coachpo/scribe/internal/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeService struct {
	delay    time.Duration
	failures map[string]error
	panics   map[string]bool

	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (f *fakeService) Snapshot(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if n <= old || f.peak.CompareAndSwap(old, n) {
			break
		}
	}
	f.mu.Lock()
	f.seen = append(f.seen, req.Account)
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return ingest.Result{}, errs.New("fake", errs.CodeCancelled)
	}
	if f.panics[req.Account] {
		panic("boom")
	}
	if err := f.failures[req.Account]; err != nil {
		return ingest.Result{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = gamemode.Main
	}
	return ingest.Result{
		Snapshot:      schema.Snapshot{ID: "id-" + req.Account, Account: req.Account, ResolvedMode: mode},
		RequestedMode: req.Mode,
		ResolvedMode:  mode,
		Created:       true,
	}, nil
}

func requests(names ...string) []Request {
	out := make([]Request, len(names))
	for i, name := range names {
		out[i] = Request{Account: name}
	}
	return out
}

func TestRunBoundsConcurrencyAndKeepsOrder(t *testing.T) {
	svc := &fakeService{delay: 20 * time.Millisecond}
	runner := NewRunner(svc, 10, nil)
	require.Equal(t, MaxConcurrency, runner.Concurrency())

	names := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}
	results := runner.Run(context.Background(), requests(names...))

	require.Len(t, results, len(names))
	for i, res := range results {
		require.Equal(t, names[i], res.Account)
		require.Equal(t, StatusSuccess, res.Status)
		require.NotNil(t, res.Snapshot)
		require.Equal(t, "id-"+names[i], res.Snapshot.ID)
	}
	require.LessOrEqual(t, int(svc.peak.Load()), MaxConcurrency)
	require.Greater(t, int(svc.peak.Load()), 1)
}

func TestRunIsolatesFailures(t *testing.T) {
	svc := &fakeService{
		delay: time.Millisecond,
		failures: map[string]error{
			"flaky":  errs.New("resolve", errs.CodeTransient, errs.WithMessage("upstream 503")),
			"ghost":  errs.New("resolve", errs.CodeNotFound, errs.WithMessage("no data for any mode")),
			"broken": errs.New("ingest/put", errs.CodeStorage, errs.WithMessage("disk full")),
		},
		panics: map[string]bool{"crash": true},
	}
	runner := NewRunner(svc, 3, nil)
	results := runner.Run(context.Background(), requests("ok1", "flaky", "ghost", "broken", "crash", "ok2", "ok3", "ok4"))

	want := []struct {
		status Status
		class  string
	}{
		{StatusSuccess, ""},
		{StatusTransientFailure, "transient"},
		{StatusNotFound, "not_found"},
		{StatusFatalFailure, "storage"},
		{StatusFatalFailure, "unknown"},
		{StatusSuccess, ""},
		{StatusSuccess, ""},
		{StatusSuccess, ""},
	}
	for i, w := range want {
		require.Equal(t, w.status, results[i].Status, results[i].Account)
		require.Equal(t, w.class, results[i].ErrorClass, results[i].Account)
	}
	require.Equal(t, "upstream 503", results[1].Message)
	require.True(t, strings.HasPrefix(results[4].Message, "panic"))
}

func TestRunCancellationStopsNewWork(t *testing.T) {
	svc := &fakeService{delay: 50 * time.Millisecond}
	runner := NewRunner(svc, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	results := runner.Run(ctx, requests("a", "b", "c", "d", "e", "f"))

	require.Len(t, results, 6)
	// the first two were in flight when cancellation hit and finish normally
	require.Equal(t, StatusSuccess, results[0].Status)
	require.Equal(t, StatusSuccess, results[1].Status)
	for _, res := range results[2:] {
		require.Equal(t, StatusTransientFailure, res.Status, res.Account)
		require.Equal(t, string(errs.CodeCancelled), res.ErrorClass)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.ElementsMatch(t, []string{"a", "b"}, svc.seen)
}

func TestRunEmpty(t *testing.T) {
	require.Empty(t, NewRunner(&fakeService{}, 1, nil).Run(context.Background(), nil))
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, StatusSuccess, StatusFor(""))
	require.Equal(t, StatusNotFound, StatusFor(errs.CodeNotFound))
	require.Equal(t, StatusTransientFailure, StatusFor(errs.CodeTransient))
	require.Equal(t, StatusTransientFailure, StatusFor(errs.CodeCancelled))
	require.Equal(t, StatusFatalFailure, StatusFor(errs.CodeFatalConfig))
	require.Equal(t, StatusFatalFailure, StatusFor(errs.CodeInvalid))
}

func TestReadRequests(t *testing.T) {
	doc := `
accounts:
  - account: Zelta
    mode: hardcore-ironman
  - account: " Lynx Titan "
`
	reqs, err := ReadRequests(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, []Request{
		{Account: "Zelta", Mode: gamemode.Hardcore},
		{Account: "Lynx Titan"},
	}, reqs)

	_, err = ReadRequests(strings.NewReader("accounts:\n  - account: x\n    mode: pvp\n"))
	require.True(t, errs.Is(err, errs.CodeInvalid))

	_, err = ReadRequests(strings.NewReader("accounts:\n  - mode: main\n"))
	require.True(t, errs.Is(err, errs.CodeInvalid))
}
