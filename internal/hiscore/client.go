// Package hiscore performs single (account, mode) lookups against the lite hiscore endpoint
// and classifies the response.
package hiscore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/telemetry"
)

// Kind classifies a fetch outcome.
type Kind int

const (
	Found Kind = iota + 1
	NotFound
	Transient
)

func (k Kind) String() string {
	switch k {
	case Found:
		return telemetry.OutcomeFound
	case NotFound:
		return telemetry.OutcomeNotFound
	case Transient:
		return telemetry.OutcomeTransient
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one fetch. Latency is always populated.
type Outcome struct {
	Kind       Kind
	Mode       gamemode.Mode
	Endpoint   string
	Payload    Payload
	Latency    time.Duration
	Status     int
	RetryAfter time.Duration
	Err        error
}

// Fetcher is the single-lookup contract consumed by the resolver.
type Fetcher interface {
	Fetch(ctx context.Context, account string, mode gamemode.Mode) Outcome
}

// Config tunes the client.
type Config struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// DefaultConfig returns conservative settings for the public upstream.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 4,
		Burst:             2,
		UserAgent:         "scribe-hiscore/1.0",
	}
}

// Client fetches lite hiscore payloads. All requests issued by one Client share a token
// bucket, so concurrent callers cannot exceed the configured request rate.
type Client struct {
	catalog *gamemode.Catalog
	http    *resty.Client
	limiter *rate.Limiter
	logger  *log.Logger
	clock   func() time.Time

	fetches  metric.Int64Counter
	duration metric.Float64Histogram
}

// New constructs a client over catalog.
func New(catalog *gamemode.Catalog, cfg Config, logger *log.Logger) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = def.UserAgent
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	httpClient := resty.New()
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetHeader("Accept", "text/plain")

	c := &Client{
		catalog: catalog,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
		clock:   time.Now,
	}
	meter := otel.Meter("hiscore.client")
	c.fetches, _ = meter.Int64Counter("hiscore.fetches",
		metric.WithDescription("Hiscore lookups by mode and outcome"),
		metric.WithUnit("{fetch}"))
	c.duration, _ = meter.Float64Histogram("hiscore.fetch.duration",
		metric.WithDescription("Hiscore lookup latency"),
		metric.WithUnit("ms"))
	return c
}

// Fetch looks up account under mode. A 404 is NotFound. Timeouts, transport failures, 5xx,
// 429, any other non-2xx status, and unparsable bodies are Transient.
func (c *Client) Fetch(ctx context.Context, account string, mode gamemode.Mode) Outcome {
	outcome := Outcome{Mode: mode}
	endpoint, ok := c.catalog.Endpoint(mode)
	if !ok {
		outcome.Kind = Transient
		outcome.Err = errs.New("hiscore/fetch", errs.CodeFatalConfig,
			errs.WithAccount(account), errs.WithMode(string(mode)),
			errs.WithMessage("mode missing from endpoint catalog"))
		return outcome
	}
	outcome.Endpoint = endpoint.URL(account)

	if err := c.limiter.Wait(ctx); err != nil {
		outcome.Kind = Transient
		outcome.Err = c.transient(account, mode, 0, "request pacing interrupted", err)
		c.observe(ctx, outcome)
		return outcome
	}

	start := c.clock()
	resp, err := c.http.R().SetContext(ctx).Get(outcome.Endpoint)
	outcome.Latency = c.clock().Sub(start)
	defer func() { c.observe(ctx, outcome) }()

	if err != nil {
		outcome.Kind = Transient
		outcome.Err = c.transient(account, mode, 0, "upstream request failed", err)
		return outcome
	}

	outcome.Status = resp.StatusCode()
	switch {
	case outcome.Status == http.StatusNotFound:
		outcome.Kind = NotFound
		return outcome
	case outcome.Status == http.StatusTooManyRequests:
		outcome.Kind = Transient
		outcome.RetryAfter = parseRetryAfter(resp.Header().Get("Retry-After"))
		outcome.Err = c.transient(account, mode, outcome.Status, "upstream throttled", nil)
		return outcome
	case outcome.Status < 200 || outcome.Status >= 300:
		outcome.Kind = Transient
		outcome.Err = c.transient(account, mode, outcome.Status, "upstream status "+strconv.Itoa(outcome.Status), nil)
		return outcome
	}

	payload, err := ParsePayload(resp.Body())
	if err != nil {
		outcome.Kind = Transient
		outcome.Err = c.transient(account, mode, outcome.Status, "upstream body unparsable", err)
		return outcome
	}
	outcome.Kind = Found
	outcome.Payload = payload
	return outcome
}

func (c *Client) transient(account string, mode gamemode.Mode, status int, msg string, cause error) error {
	opts := []errs.Option{
		errs.WithAccount(account),
		errs.WithMode(string(mode)),
		errs.WithMessage(msg),
	}
	if status > 0 {
		opts = append(opts, errs.WithHTTP(status))
	}
	if cause != nil {
		opts = append(opts, errs.WithCause(cause))
	}
	if cause != nil && errors.Is(cause, context.DeadlineExceeded) {
		opts = append(opts, errs.WithRemediation("raise hiscore.timeout or retry later"))
	}
	return errs.New("hiscore/fetch", errs.CodeTransient, opts...)
}

func (c *Client) observe(ctx context.Context, outcome Outcome) {
	attrs := metric.WithAttributes(telemetry.FetchAttributes(telemetry.Environment(), string(outcome.Mode), outcome.Kind.String())...)
	if c.fetches != nil {
		c.fetches.Add(ctx, 1, attrs)
	}
	if c.duration != nil {
		c.duration.Record(ctx, float64(outcome.Latency)/float64(time.Millisecond), attrs)
	}
	if outcome.Kind == Transient && c.logger != nil {
		c.logger.Printf("hiscore fetch %s transient after %s: %v", outcome.Mode, outcome.Latency, outcome.Err)
	}
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

var _ Fetcher = (*Client)(nil)

// String renders the outcome for logs.
func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", o.Mode, o.Kind, o.Latency, o.Err)
	}
	return fmt.Sprintf("%s %s (%s)", o.Mode, o.Kind, o.Latency)
}
