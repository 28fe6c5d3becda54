// Package batch runs the single-account pipeline over many accounts with a bounded
// number of concurrent workers.
package batch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/ingest"
	"github.com/coachpo/scribe/internal/schema"
	"github.com/coachpo/scribe/internal/telemetry"
)

// MaxConcurrency is the hard ceiling on simultaneous account resolutions.
const MaxConcurrency = 5

// Status is the per-account outcome class.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusNotFound         Status = "not-found"
	StatusTransientFailure Status = "transient-failure"
	StatusFatalFailure     Status = "fatal-failure"
)

// Request is one account to ingest.
type Request = ingest.Request

// Result is the outcome for one account. Exactly one Result is produced per Request, in the
// same order.
type Result struct {
	Account       string           `json:"account"`
	RequestedMode gamemode.Mode    `json:"requested_mode,omitempty"`
	ResolvedMode  gamemode.Mode    `json:"resolved_mode,omitempty"`
	Status        Status           `json:"status"`
	Snapshot      *schema.Snapshot `json:"snapshot,omitempty"`
	Delta         *schema.Delta    `json:"delta,omitempty"`
	ErrorClass    string           `json:"error_class,omitempty"`
	Message       string           `json:"message,omitempty"`
}

// Snapshotter runs the single-account pipeline.
type Snapshotter interface {
	Snapshot(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Runner fans requests out over a bounded worker pool.
type Runner struct {
	service     Snapshotter
	concurrency int
	logger      *log.Logger

	results  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRunner constructs a runner. Concurrency is clamped to [1, MaxConcurrency].
func NewRunner(service Snapshotter, concurrency int, logger *log.Logger) *Runner {
	if concurrency <= 0 || concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	r := &Runner{service: service, concurrency: concurrency, logger: logger}
	meter := otel.Meter("batch.runner")
	r.results, _ = meter.Int64Counter("batch.results",
		metric.WithDescription("Batch items by status and error class"),
		metric.WithUnit("{account}"))
	r.duration, _ = meter.Float64Histogram("batch.run.duration",
		metric.WithDescription("Wall time of a batch run"),
		metric.WithUnit("ms"))
	return r
}

// Concurrency reports the effective worker ceiling.
func (r *Runner) Concurrency() int { return r.concurrency }

// Run ingests every request and returns results in input order. One account's failure never
// affects another. Once ctx is cancelled no further accounts are started; those left over
// are reported as transient failures of class cancelled, while accounts already in flight
// finish on a context detached from the cancellation.
func (r *Runner) Run(ctx context.Context, requests []Request) []Result {
	started := time.Now()
	results := make([]Result, len(requests))
	if len(requests) == 0 {
		return results
	}

	workers := r.concurrency
	if workers > len(requests) {
		workers = len(requests)
	}
	p := pool.New().WithMaxGoroutines(workers)
	for idx, req := range requests {
		i := idx
		item := req
		if ctx.Err() != nil {
			results[i] = cancelled(item)
			continue
		}
		p.Go(func() {
			if ctx.Err() != nil {
				results[i] = cancelled(item)
				return
			}
			results[i] = r.runOne(context.WithoutCancel(ctx), item)
		})
	}
	p.Wait()

	env := telemetry.Environment()
	for _, res := range results {
		if r.results != nil {
			r.results.Add(ctx, 1, metric.WithAttributes(
				telemetry.BatchAttributes(env, string(res.Status), res.ErrorClass)...))
		}
	}
	if r.duration != nil {
		r.duration.Record(ctx, float64(time.Since(started))/float64(time.Millisecond),
			metric.WithAttributes(telemetry.OperationResultAttributes(env, "batch", summarize(results))...))
	}
	if r.logger != nil {
		r.logger.Printf("batch of %d finished in %s: %s", len(results), time.Since(started).Round(time.Millisecond), tally(results))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, req Request) (result Result) {
	result = Result{Account: strings.TrimSpace(req.Account), RequestedMode: req.Mode}
	defer func() {
		if rec := recover(); rec != nil {
			result.Status = StatusFatalFailure
			result.ErrorClass = string(errs.CodeUnknown)
			result.Message = fmt.Sprintf("panic: %v", rec)
		}
	}()

	out, err := r.service.Snapshot(ctx, req)
	if err != nil {
		code := errs.CodeOf(err)
		result.Status = StatusFor(code)
		result.ErrorClass = string(code)
		result.Message = errs.Message(err)
		if r.logger != nil && code != errs.CodeNotFound {
			r.logger.Printf("batch item %q failed: %v", result.Account, err)
		}
		return result
	}
	snap := out.Snapshot
	result.Status = StatusSuccess
	result.ResolvedMode = out.ResolvedMode
	result.Snapshot = &snap
	result.Delta = out.Delta
	return result
}

// StatusFor maps an error code to a batch status.
func StatusFor(code errs.Code) Status {
	switch code {
	case "":
		return StatusSuccess
	case errs.CodeNotFound:
		return StatusNotFound
	case errs.CodeTransient, errs.CodeCancelled:
		return StatusTransientFailure
	default:
		return StatusFatalFailure
	}
}

func cancelled(req Request) Result {
	return Result{
		Account:       strings.TrimSpace(req.Account),
		RequestedMode: req.Mode,
		Status:        StatusTransientFailure,
		ErrorClass:    string(errs.CodeCancelled),
		Message:       "batch cancelled before account started",
	}
}

func summarize(results []Result) string {
	for _, res := range results {
		if res.Status != StatusSuccess && res.Status != StatusNotFound {
			return "partial"
		}
	}
	return "ok"
}

func tally(results []Result) string {
	counts := map[Status]int{}
	for _, res := range results {
		counts[res.Status]++
	}
	parts := make([]string, 0, 4)
	for _, status := range []Status{StatusSuccess, StatusNotFound, StatusTransientFailure, StatusFatalFailure} {
		if counts[status] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", status, counts[status]))
		}
	}
	return strings.Join(parts, " ")
}
