// Package resolver finds the gamemode that currently yields data for an account by probing
// candidate modes in a deterministic order.
package resolver

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/hiscore"
	"github.com/coachpo/scribe/internal/modecache"
	"github.com/coachpo/scribe/internal/retry"
	"github.com/coachpo/scribe/internal/telemetry"
)

// ModeCache is the hint store consulted for probe ordering and updated on success.
type ModeCache interface {
	Lookup(ctx context.Context, account string) (modecache.Entry, bool)
	Record(ctx context.Context, account string, mode gamemode.Mode, endpoint string, now time.Time) modecache.Entry
}

// ProbeAttempt summarizes every fetch made against one candidate mode.
type ProbeAttempt struct {
	Mode    gamemode.Mode
	Kind    hiscore.Kind
	Tries   int
	Latency time.Duration
	Status  int
	Err     error
}

// Resolution is a successful mode resolution.
type Resolution struct {
	Account   string
	Requested gamemode.Mode
	Resolved  gamemode.Mode
	Cached    gamemode.Mode
	Endpoint  string
	Payload   hiscore.Payload
	FetchedAt time.Time
	Latency   time.Duration
	Attempts  []ProbeAttempt
}

// ModeChanged reports whether data was found under a mode other than the requested one.
func (r Resolution) ModeChanged() bool {
	return r.Requested != "" && r.Requested != r.Resolved
}

// Config tunes resolution.
type Config struct {
	Retry retry.Policy
	// ProbeFallenHardcore re-checks the ironman board when an account resolves as hardcore.
	// A hardcore account that lost its status keeps a frozen hardcore entry while its ironman
	// entry keeps progressing.
	ProbeFallenHardcore bool
}

// Resolver orchestrates the mode cache and the hiscore client.
type Resolver struct {
	fetcher hiscore.Fetcher
	cache   ModeCache
	cfg     Config
	logger  *log.Logger
	clock   func() time.Time

	resolutions metric.Int64Counter
	modeChanges metric.Int64Counter
	duration    metric.Float64Histogram
	attempts    metric.Int64Histogram
}

// New constructs a resolver. cache may be nil, in which case every resolution probes in
// canonical order.
func New(fetcher hiscore.Fetcher, cache ModeCache, cfg Config, logger *log.Logger) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		clock:   time.Now,
	}
	meter := otel.Meter("resolver")
	r.resolutions, _ = meter.Int64Counter("resolver.resolutions",
		metric.WithDescription("Mode resolutions by requested mode, resolved mode, and result"),
		metric.WithUnit("{resolution}"))
	r.modeChanges, _ = meter.Int64Counter("resolver.mode_changes",
		metric.WithDescription("Resolutions whose resolved mode differs from the requested mode"),
		metric.WithUnit("{resolution}"))
	r.duration, _ = meter.Float64Histogram("resolver.resolve.duration",
		metric.WithDescription("Wall time spent probing one account"),
		metric.WithUnit("ms"))
	r.attempts, _ = meter.Int64Histogram("resolver.resolve.attempts",
		metric.WithDescription("Fetches issued for one account"),
		metric.WithUnit("{fetch}"))
	return r
}

// Resolve probes candidate modes sequentially and stops at the first Found. Transient outcomes
// are retried per the policy before moving on. It returns a not_found error when every
// candidate reported NotFound and a transient error when none was found and at least one
// candidate ended transient. A resolved mode different from requested is not an error.
func (r *Resolver) Resolve(ctx context.Context, account string, requested gamemode.Mode) (Resolution, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return Resolution{}, errs.New("resolver/resolve", errs.CodeInvalid, errs.WithMessage("account name required"))
	}
	if requested != "" && !requested.Valid() {
		return Resolution{}, errs.New("resolver/resolve", errs.CodeInvalid,
			errs.WithAccount(account), errs.WithMode(string(requested)), errs.WithMessage("unknown gamemode"))
	}

	started := r.clock()
	res := Resolution{Account: account, Requested: requested}
	if r.cache != nil {
		if entry, ok := r.cache.Lookup(ctx, account); ok {
			res.Cached = entry.Mode
		}
	}

	var (
		found     *hiscore.Outcome
		transient error
	)
	for _, mode := range BuildProbeOrder(requested, res.Cached) {
		if err := ctx.Err(); err != nil {
			transient = errs.New("resolver/resolve", errs.CodeTransient,
				errs.WithAccount(account), errs.WithMessage("resolution interrupted"), errs.WithCause(err))
			break
		}
		outcome, attempt := r.probe(ctx, account, mode)
		res.Attempts = append(res.Attempts, attempt)
		res.Latency += attempt.Latency

		if outcome.Kind == hiscore.Found {
			found = &outcome
			break
		}
		if outcome.Kind == hiscore.Transient {
			if errs.Is(outcome.Err, errs.CodeFatalConfig) {
				r.finish(ctx, res, started, "fatal")
				return Resolution{}, outcome.Err
			}
			transient = outcome.Err
		}
	}

	if found == nil {
		if transient != nil {
			r.finish(ctx, res, started, "transient")
			return Resolution{}, errs.New("resolver/resolve", errs.CodeTransient,
				errs.WithAccount(account), errs.WithMode(string(requested)),
				errs.WithMessage("upstream unavailable for at least one mode"),
				errs.WithRemediation("retry later"),
				errs.WithCause(transient))
		}
		r.finish(ctx, res, started, "not_found")
		if r.logger != nil {
			r.logger.Printf("account %q has no data for any mode", account)
		}
		return Resolution{}, errs.New("resolver/resolve", errs.CodeNotFound,
			errs.WithAccount(account), errs.WithMode(string(requested)),
			errs.WithMessage("no data for any mode"))
	}

	res.Resolved = found.Mode
	res.Endpoint = found.Endpoint
	res.Payload = found.Payload
	if r.cfg.ProbeFallenHardcore && found.Mode == gamemode.Hardcore {
		r.checkFallenHardcore(ctx, &res)
	}
	res.FetchedAt = r.clock().UTC()

	if r.cache != nil {
		r.cache.Record(ctx, account, res.Resolved, res.Endpoint, res.FetchedAt)
	}
	r.finish(ctx, res, started, "found")
	if res.ModeChanged() && r.logger != nil {
		r.logger.Printf("account %q requested as %s resolved as %s", account, res.Requested, res.Resolved)
	}
	return res, nil
}

func (r *Resolver) probe(ctx context.Context, account string, mode gamemode.Mode) (hiscore.Outcome, ProbeAttempt) {
	attempt := ProbeAttempt{Mode: mode}
	outcome, tries, _ := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context, _ int) (hiscore.Outcome, error) {
		outcome := r.fetcher.Fetch(ctx, account, mode)
		attempt.Latency += outcome.Latency
		if outcome.Kind == hiscore.Transient {
			return outcome, retry.After(outcome.Err, outcome.RetryAfter)
		}
		return outcome, nil
	}, retry.WithRetryIf(func(err error) bool {
		return !errs.Is(err, errs.CodeFatalConfig)
	}), retry.WithNotify(func(n int, err error, wait time.Duration) {
		if r.logger != nil {
			r.logger.Printf("probe %s for %q attempt %d transient, retrying in %s: %v", mode, account, n, wait, errs.Message(err))
		}
	}))
	attempt.Tries = tries
	attempt.Kind = outcome.Kind
	attempt.Status = outcome.Status
	attempt.Err = outcome.Err
	return outcome, attempt
}

// checkFallenHardcore swaps in the ironman entry when it shows strictly more overall xp.
func (r *Resolver) checkFallenHardcore(ctx context.Context, res *Resolution) {
	outcome := r.fetcher.Fetch(ctx, res.Account, gamemode.Ironman)
	res.Latency += outcome.Latency
	res.Attempts = append(res.Attempts, ProbeAttempt{
		Mode:    gamemode.Ironman,
		Kind:    outcome.Kind,
		Tries:   1,
		Latency: outcome.Latency,
		Status:  outcome.Status,
		Err:     outcome.Err,
	})
	if outcome.Kind != hiscore.Found {
		return
	}
	if outcome.Payload.OverallXP() > res.Payload.OverallXP() {
		res.Resolved = gamemode.Ironman
		res.Endpoint = outcome.Endpoint
		res.Payload = outcome.Payload
	}
}

func (r *Resolver) finish(ctx context.Context, res Resolution, started time.Time, result string) {
	attrs := metric.WithAttributes(telemetry.ResolutionAttributes(telemetry.Environment(),
		string(res.Requested), string(res.Resolved), result)...)
	if r.resolutions != nil {
		r.resolutions.Add(ctx, 1, attrs)
	}
	if r.duration != nil {
		r.duration.Record(ctx, float64(r.clock().Sub(started))/float64(time.Millisecond), attrs)
	}
	if r.attempts != nil {
		total := 0
		for _, a := range res.Attempts {
			total += a.Tries
		}
		r.attempts.Record(ctx, int64(total), attrs)
	}
	if result == "found" && res.ModeChanged() && r.modeChanges != nil {
		r.modeChanges.Add(ctx, 1, attrs)
	}
}
