package activity

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/schema"
	"github.com/coachpo/scribe/internal/telemetry"
)

// Index owns the in-process activity ordering. Resolve performs live discovery with a
// cached and then static fallback; Current never touches the network.
type Index struct {
	discovery Discovery
	store     CacheStore
	logger    *log.Logger
	clock     func() time.Time

	mu         sync.RWMutex
	current    *Ordering
	refreshing atomic.Bool

	resolutions metric.Int64Counter
	degraded    metric.Int64Counter
}

// Option customizes an Index.
type Option func(*Index)

// WithClock overrides the clock used to stamp discovered orderings.
func WithClock(clock func() time.Time) Option {
	return func(i *Index) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// WithLogger sets the logger used for degradation warnings. Nil disables logging.
func WithLogger(logger *log.Logger) Option {
	return func(i *Index) {
		i.logger = logger
	}
}

// NewIndex constructs an index. Either collaborator may be nil: a nil discovery always
// degrades, a nil store behaves as an empty cache.
func NewIndex(discovery Discovery, store CacheStore, opts ...Option) *Index {
	idx := &Index{
		discovery: discovery,
		store:     store,
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(idx)
		}
	}

	meter := otel.Meter("activity.index")
	idx.resolutions, _ = meter.Int64Counter("activity.index.resolutions",
		metric.WithDescription("Activity index resolutions by source"),
		metric.WithUnit("{resolution}"))
	idx.degraded, _ = meter.Int64Counter("activity.index.degraded",
		metric.WithDescription("Activity index resolutions that fell back to cached or static ordering"),
		metric.WithUnit("{resolution}"))
	return idx
}

// Resolve runs live discovery and persists the result. When discovery fails the last cached
// ordering is used, then the static ordering. A fallback result is returned together with a
// discovery_degraded error; the ordering is usable in every case.
func (i *Index) Resolve(ctx context.Context) (Ordering, error) {
	ordering, discoverErr := i.discover(ctx)
	if discoverErr == nil {
		if i.store != nil {
			if err := i.store.Save(ctx, ordering); err != nil {
				i.logf("activity index cache save failed: %v", err)
			}
		}
		i.set(ordering)
		i.record(ctx, ordering.Source)
		return ordering.Clone(), nil
	}

	fallback := i.fallback(ctx)
	i.set(fallback)
	i.record(ctx, fallback.Source)
	i.logf("activity index discovery degraded to %s ordering: %v", fallback.Source, discoverErr)
	return fallback.Clone(), errs.New("activity/resolve", errs.CodeDiscoveryDegraded,
		errs.WithMessage("using "+string(fallback.Source)+" activity ordering"),
		errs.WithCause(discoverErr))
}

// Current returns the in-memory ordering, lazily loading the cache and then the static
// ordering on first use.
func (i *Index) Current(ctx context.Context) Ordering {
	i.mu.RLock()
	current := i.current
	i.mu.RUnlock()
	if current != nil {
		return current.Clone()
	}

	ordering := i.fallback(ctx)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current == nil {
		i.current = &ordering
	}
	return i.current.Clone()
}

// RefreshAsync starts Resolve in the background. It returns nil when a refresh is already
// running; otherwise the channel receives the Resolve error (possibly nil) and is closed.
func (i *Index) RefreshAsync(ctx context.Context) <-chan error {
	if !i.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer i.refreshing.Store(false)
		_, err := i.Resolve(ctx)
		done <- err
	}()
	return done
}

func (i *Index) discover(ctx context.Context) (Ordering, error) {
	if i.discovery == nil {
		return Ordering{}, errs.New("activity/discover", errs.CodeDiscoveryDegraded,
			errs.WithMessage("discovery disabled"))
	}
	descriptors, err := i.discovery.Discover(ctx)
	if err != nil {
		return Ordering{}, err
	}
	ordering := Ordering{
		Descriptors: descriptors,
		Source:      schema.IndexDiscovered,
		ResolvedAt:  i.clock().UTC(),
	}
	if err := ordering.Validate(); err != nil {
		return Ordering{}, errs.New("activity/discover", errs.CodeDiscoveryDegraded,
			errs.WithMessage("discovered ordering invalid"), errs.WithCause(err))
	}
	return ordering, nil
}

func (i *Index) fallback(ctx context.Context) Ordering {
	if i.store != nil {
		cached, ok, err := i.store.Load(ctx)
		if err != nil {
			i.logf("activity index cache load failed: %v", err)
		}
		if ok && err == nil && cached.Validate() == nil {
			cached.Source = schema.IndexCached
			return cached
		}
	}
	return StaticOrdering()
}

func (i *Index) set(ordering Ordering) {
	clone := ordering.Clone()
	i.mu.Lock()
	i.current = &clone
	i.mu.Unlock()
}

func (i *Index) record(ctx context.Context, source schema.IndexSource) {
	attrs := metric.WithAttributes(telemetry.IndexAttributes(telemetry.Environment(), string(source))...)
	if i.resolutions != nil {
		i.resolutions.Add(ctx, 1, attrs)
	}
	if source != schema.IndexDiscovered && i.degraded != nil {
		i.degraded.Add(ctx, 1, attrs)
	}
}

func (i *Index) logf(format string, args ...any) {
	if i.logger != nil {
		i.logger.Printf(format, args...)
	}
}
