// Package modecache remembers which gamemode last resolved for each account so probes can
// start with the most likely candidate. Entries are hints: a miss or a stale entry only makes
// resolution slower.
package modecache

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/maypok86/otter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/schema"
	"github.com/coachpo/scribe/internal/telemetry"
)

// DefaultMemoSize bounds the number of entries held in front of the store.
const DefaultMemoSize = 4096

// Key folds an account name into its cache key. See schema.AccountKey.
func Key(account string) string {
	return schema.AccountKey(account)
}

// Cache fronts a Store with a bounded in-process memo.
type Cache struct {
	store  Store
	memo   otter.Cache[string, Entry]
	logger *log.Logger

	lookups metric.Int64Counter
}

// Option customizes a Cache.
type Option func(*cacheOptions)

type cacheOptions struct {
	memoSize int
	logger   *log.Logger
}

// WithMemoSize overrides DefaultMemoSize.
func WithMemoSize(n int) Option {
	return func(o *cacheOptions) {
		if n > 0 {
			o.memoSize = n
		}
	}
}

// WithLogger sets the logger used to report store failures. Nil disables logging.
func WithLogger(logger *log.Logger) Option {
	return func(o *cacheOptions) {
		o.logger = logger
	}
}

// New constructs a cache over store. A nil store keeps entries in memory only.
func New(store Store, opts ...Option) (*Cache, error) {
	cfg := cacheOptions{memoSize: DefaultMemoSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	memo, err := otter.MustBuilder[string, Entry](cfg.memoSize).
		Cost(func(_ string, _ Entry) uint32 { return 1 }).
		Build()
	if err != nil {
		return nil, err
	}

	c := &Cache{store: store, memo: memo, logger: cfg.logger}
	meter := otel.Meter("modecache")
	c.lookups, _ = meter.Int64Counter("modecache.lookups",
		metric.WithDescription("Mode cache lookups by result"),
		metric.WithUnit("{lookup}"))
	return c, nil
}

// Lookup returns the cached entry for account. Store failures are logged and reported as a
// miss.
func (c *Cache) Lookup(ctx context.Context, account string) (Entry, bool) {
	key := Key(account)
	if key == "" {
		return Entry{}, false
	}
	if entry, ok := c.memo.Get(key); ok {
		c.count(ctx, "memo")
		return entry, true
	}
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logf("mode cache lookup for %q failed: %v", account, err)
		c.count(ctx, "error")
		return Entry{}, false
	}
	if !ok {
		c.count(ctx, "miss")
		return Entry{}, false
	}
	c.memo.Set(key, entry)
	c.count(ctx, "hit")
	return entry, true
}

// Record replaces the entry for account. DetectedAt is carried over while the mode is
// unchanged and reset when it differs. Store failures are logged and swallowed.
func (c *Cache) Record(ctx context.Context, account string, mode gamemode.Mode, endpoint string, now time.Time) Entry {
	key := Key(account)
	now = now.UTC()
	entry := Entry{
		Account:     key,
		DisplayName: strings.TrimSpace(account),
		Mode:        mode,
		Endpoint:    endpoint,
		DetectedAt:  now,
		UpdatedAt:   now,
	}
	if key == "" {
		return entry
	}
	if prev, ok := c.Lookup(ctx, account); ok && prev.Mode == mode && !prev.DetectedAt.IsZero() {
		entry.DetectedAt = prev.DetectedAt
	}
	c.memo.Set(key, entry)
	if err := c.store.Put(ctx, entry); err != nil {
		c.logf("mode cache record for %q failed: %v", account, err)
	}
	return entry
}

// Close releases the memo.
func (c *Cache) Close() {
	c.memo.Close()
}

func (c *Cache) count(ctx context.Context, result string) {
	if c.lookups != nil {
		c.lookups.Add(ctx, 1, metric.WithAttributes(
			telemetry.OperationResultAttributes(telemetry.Environment(), "lookup", result)...))
	}
}

func (c *Cache) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
