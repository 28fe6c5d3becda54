// Package retry centralizes the bounded exponential backoff used for upstream calls.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy parameterizes a bounded retry loop.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
}

// DefaultPolicy returns the policy used for mode probes: three attempts with jittered
// exponential waits.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		Jitter:          0.5,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval < 0 {
		p.InitialInterval = 0
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

type options struct {
	retryIf func(error) bool
	notify  func(attempt int, err error, wait time.Duration)
}

// Option customizes a single Do invocation.
type Option func(*options)

// WithRetryIf restricts retries to errors accepted by fn. By default every error is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(o *options) {
		o.retryIf = fn
	}
}

// WithNotify registers a callback invoked before each wait.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// AfterError carries an upstream wait hint alongside a retryable failure.
type AfterError struct {
	Err  error
	Wait time.Duration
}

func (e *AfterError) Error() string { return e.Err.Error() }

func (e *AfterError) Unwrap() error { return e.Err }

// After annotates err with a minimum wait before the next attempt.
func After(err error, wait time.Duration) error {
	if err == nil || wait <= 0 {
		return err
	}
	return &AfterError{Err: err, Wait: wait}
}

// Do invokes op until it succeeds, returns a non-retryable error, exhausts the attempt budget,
// or ctx is done. It returns the last result, the number of attempts made, and the last error.
func Do[T any](ctx context.Context, p Policy, op func(context.Context, int) (T, error), opts ...Option) (T, int, error) {
	p = p.normalize()
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	b := p.backOff()

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err = op(ctx, attempt)
		if err == nil {
			return result, attempt, nil
		}
		if cfg.retryIf != nil && !cfg.retryIf(err) {
			return result, attempt, err
		}
		if attempt == p.MaxAttempts {
			return result, attempt, err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return result, attempt, err
		}
		var hinted *AfterError
		if errors.As(err, &hinted) && hinted.Wait > wait {
			wait = min(hinted.Wait, p.MaxInterval)
		}
		if cfg.notify != nil {
			cfg.notify(attempt, err, wait)
		}
		if wait <= 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, attempt, err
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, attempt, err
		case <-timer.C:
		}
	}
	return result, p.MaxAttempts, err
}
