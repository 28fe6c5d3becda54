// Package ingest wires resolution, normalization, identity, and delta computation into the
// single-account snapshot operation.
package ingest

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/activity"
	"github.com/coachpo/scribe/internal/delta"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/normalize"
	"github.com/coachpo/scribe/internal/resolver"
	"github.com/coachpo/scribe/internal/schema"
	"github.com/coachpo/scribe/internal/snapshot"
)

// MaxAccountLength is the longest account name the upstream accepts.
const MaxAccountLength = 12

// Request asks for one account snapshot. An empty Mode means no mode was requested.
type Request struct {
	Account string        `json:"account" yaml:"account"`
	Mode    gamemode.Mode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Result is a stored snapshot along with its delta against the previous one.
type Result struct {
	Snapshot      schema.Snapshot `json:"snapshot"`
	Delta         *schema.Delta   `json:"delta,omitempty"`
	RequestedMode gamemode.Mode   `json:"requested_mode,omitempty"`
	ResolvedMode  gamemode.Mode   `json:"resolved_mode"`
	Latency       time.Duration   `json:"latency_ns"`
	Created       bool            `json:"created"`
}

// ModeChanged reports whether the account resolved under a mode other than requested.
func (r Result) ModeChanged() bool {
	return r.RequestedMode != "" && r.RequestedMode != r.ResolvedMode
}

// Resolver finds the mode with data for an account.
type Resolver interface {
	Resolve(ctx context.Context, account string, requested gamemode.Mode) (resolver.Resolution, error)
}

// Index supplies the positional layout used for normalization without touching the network.
type Index interface {
	Current(ctx context.Context) activity.Ordering
}

// Service runs the single-account pipeline.
type Service struct {
	resolver Resolver
	index    Index
	store    snapshot.Store
	logger   *log.Logger
}

// New constructs the pipeline. A nil store keeps snapshots in memory.
func New(res Resolver, index Index, store snapshot.Store, logger *log.Logger) *Service {
	if store == nil {
		store = snapshot.NewMemoryStore()
	}
	return &Service{resolver: res, index: index, store: store, logger: logger}
}

// ValidateAccount checks the upstream's account name rules: 1 to 12 characters drawn from
// letters, digits, spaces, hyphens, and underscores.
func ValidateAccount(account string) error {
	trimmed := strings.TrimSpace(account)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 || n > MaxAccountLength {
		return errs.New("ingest/validate", errs.CodeInvalid, errs.WithAccount(trimmed),
			errs.WithMessage("account name must be 1 to 12 characters"))
	}
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '-', r == '_':
		default:
			return errs.New("ingest/validate", errs.CodeInvalid, errs.WithAccount(trimmed),
				errs.WithMessage("account name contains "+string(r)))
		}
	}
	return nil
}

// Snapshot resolves, normalizes, identifies, diffs, and stores one account snapshot.
// Resolution failures are returned unchanged so callers can tell not_found from transient.
func (s *Service) Snapshot(ctx context.Context, req Request) (Result, error) {
	account := strings.TrimSpace(req.Account)
	if err := ValidateAccount(account); err != nil {
		return Result{}, err
	}

	res, err := s.resolver.Resolve(ctx, account, req.Mode)
	if err != nil {
		return Result{}, err
	}

	var ordering activity.Ordering
	if s.index != nil {
		ordering = s.index.Current(ctx)
	}
	if ordering.Len() == 0 {
		ordering = activity.StaticOrdering()
	}

	snap := normalize.Normalize(res.Payload, ordering, normalize.Meta{
		Account:       account,
		RequestedMode: req.Mode,
		ResolvedMode:  res.Resolved,
		Endpoint:      res.Endpoint,
		FetchedAt:     res.FetchedAt,
		Latency:       res.Latency,
	})
	if ordering.Source != schema.IndexDiscovered {
		snap.Warnings = append(snap.Warnings, "activity index degraded: using "+string(ordering.Source)+" ordering")
	}
	snap.ID = snapshot.Identify(account, snap.ResolvedMode, snap.FetchedAt)

	prev, err := s.store.Previous(ctx, account, snap.FetchedAt)
	if err != nil {
		return Result{}, storageErr("ingest/previous", account, err)
	}
	created, err := s.store.Put(ctx, snap)
	if err != nil {
		return Result{}, storageErr("ingest/put", account, err)
	}

	result := Result{
		Snapshot:      snap,
		Delta:         delta.Diff(prev, snap),
		RequestedMode: req.Mode,
		ResolvedMode:  snap.ResolvedMode,
		Latency:       res.Latency,
		Created:       created,
	}
	if s.logger != nil {
		s.logger.Printf("snapshot %s account=%q mode=%s created=%t latency=%s", snap.ID, account, snap.ResolvedMode, created, res.Latency)
	}
	return result, nil
}

func storageErr(op, account string, err error) error {
	code := errs.CodeOf(err)
	if code == errs.CodeUnknown {
		code = errs.CodeStorage
	}
	return errs.New(op, code, errs.WithAccount(account), errs.WithCause(err))
}
