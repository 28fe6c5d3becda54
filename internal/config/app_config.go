// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/hiscore"
	"github.com/coachpo/scribe/internal/retry"
	"github.com/coachpo/scribe/internal/telemetry"
)

const (
	// DefaultPath is read when neither an explicit path nor SCRIBE_CONFIG is set.
	DefaultPath = "config/app.yaml"

	maxBatchConcurrency = 5
)

// UpstreamConfig locates the hiscore service and tunes the lookup client.
type UpstreamConfig struct {
	BaseURL           string            `yaml:"baseURL"`
	Paths             map[string]string `yaml:"paths"`
	Timeout           time.Duration     `yaml:"timeout"`
	RequestsPerSecond float64           `yaml:"requestsPerSecond"`
	Burst             int               `yaml:"burst"`
	UserAgent         string            `yaml:"userAgent"`
}

// RetryConfig mirrors retry.Policy.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"maxAttempts"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
	Multiplier      float64       `yaml:"multiplier"`
	Jitter          float64       `yaml:"jitter"`
}

// ResolverConfig toggles optional resolution heuristics.
type ResolverConfig struct {
	ProbeFallenHardcore bool `yaml:"probeFallenHardcore"`
}

type concurrencyKind int

const (
	concurrencyUnset concurrencyKind = iota
	concurrencyExplicit
	concurrencyMax
)

// ConcurrencySetting accepts a positive integer or "max".
type ConcurrencySetting struct {
	kind  concurrencyKind
	value int
}

// UnmarshalYAML supports integer, "max", and "default" values.
func (s *ConcurrencySetting) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = ConcurrencySetting{}
		return nil
	}
	text := strings.TrimSpace(node.Value)
	switch strings.ToLower(text) {
	case "", "default":
		*s = ConcurrencySetting{}
		return nil
	case "max":
		*s = ConcurrencySetting{kind: concurrencyMax}
		return nil
	}
	val, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("concurrency: invalid value %q", node.Value)
	}
	if val <= 0 {
		return fmt.Errorf("concurrency: numeric value must be > 0")
	}
	*s = ConcurrencySetting{kind: concurrencyExplicit, value: val}
	return nil
}

// Workers returns the effective worker count, never above the batch ceiling.
func (s ConcurrencySetting) Workers() int {
	switch s.kind {
	case concurrencyExplicit:
		if s.value > maxBatchConcurrency {
			return maxBatchConcurrency
		}
		return s.value
	default:
		return maxBatchConcurrency
	}
}

// BatchConfig configures multi-account runs.
type BatchConfig struct {
	Concurrency  ConcurrencySetting `yaml:"concurrency"`
	AccountsFile string             `yaml:"accountsFile"`
	Schedule     string             `yaml:"schedule"`
}

// DiscoveryConfig configures live activity-index discovery.
type DiscoveryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	PageURL  string        `yaml:"pageURL"`
	Timeout  time.Duration `yaml:"timeout"`
	Schedule string        `yaml:"schedule"`
}

// StorageConfig selects where snapshots, the mode cache, and the activity index live.
type StorageConfig struct {
	Driver   StorageDriver `yaml:"driver"`
	Dir      string        `yaml:"dir"`
	DSN      string        `yaml:"dsn"`
	MemoSize int           `yaml:"memoSize"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// AppConfig is the unified scribe configuration sourced from YAML.
type AppConfig struct {
	Environment Environment     `yaml:"environment"`
	Upstream    UpstreamConfig  `yaml:"upstream"`
	Retry       RetryConfig     `yaml:"retry"`
	Resolver    ResolverConfig  `yaml:"resolver"`
	Batch       BatchConfig     `yaml:"batch"`
	Discovery   DiscoveryConfig `yaml:"discovery"`
	Storage     StorageConfig   `yaml:"storage"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	def := hiscore.DefaultConfig()
	policy := retry.DefaultPolicy()
	return AppConfig{
		Environment: EnvDev,
		Upstream: UpstreamConfig{
			BaseURL:           gamemode.DefaultBaseURL,
			Timeout:           def.Timeout,
			RequestsPerSecond: def.RequestsPerSecond,
			Burst:             def.Burst,
			UserAgent:         def.UserAgent,
		},
		Retry: RetryConfig{
			MaxAttempts:     policy.MaxAttempts,
			InitialInterval: policy.InitialInterval,
			MaxInterval:     policy.MaxInterval,
			Multiplier:      policy.Multiplier,
			Jitter:          policy.Jitter,
		},
		Batch: BatchConfig{
			Schedule: "@every 6h",
		},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Timeout:  15 * time.Second,
			Schedule: "@daily",
		},
		Storage: StorageConfig{
			Driver:   StorageMemory,
			Dir:      "data",
			MemoSize: 4096,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "http://localhost:4318",
			ServiceName:   "scribe",
			EnableMetrics: true,
		},
	}
}

// Load reads and validates an AppConfig with precedence defaults, YAML, then environment.
// An empty path falls back to SCRIBE_CONFIG and then DefaultPath. Every failure is fatal_config.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(resolvePath(configPath))
	if err != nil {
		return AppConfig{}, fatal("open config", err)
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fatal("read config", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fatal("unmarshal config", err)
	}
	return finish(cfg)
}

// LoadOrDefault behaves like Load but starts from Default when the file does not exist.
// loadedFromFile reports whether a file was read.
func LoadOrDefault(ctx context.Context, configPath string) (cfg AppConfig, loadedFromFile bool, err error) {
	path := resolvePath(configPath)
	if _, statErr := os.Stat(path); statErr != nil && os.IsNotExist(statErr) {
		cfg, err = finish(Default())
		return cfg, false, err
	}
	cfg, err = Load(ctx, path)
	return cfg, err == nil, err
}

func finish(cfg AppConfig) (AppConfig, error) {
	cfg.loadEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func resolvePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SCRIBE_CONFIG"))
	}
	if path == "" {
		path = DefaultPath
	}
	return path
}

func (c *AppConfig) loadEnv() {
	if env := strings.TrimSpace(os.Getenv("SCRIBE_ENV")); env != "" {
		c.Environment = Environment(env)
	}
	if dsn := strings.TrimSpace(os.Getenv("SCRIBE_DATABASE_DSN")); dsn != "" {
		c.Storage.DSN = dsn
		if c.Storage.Driver == "" || c.Storage.Driver == StorageMemory {
			c.Storage.Driver = StoragePostgres
		}
	}
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(normalizeName(string(c.Environment)))
	c.Upstream.BaseURL = strings.TrimSpace(c.Upstream.BaseURL)
	c.Upstream.UserAgent = strings.TrimSpace(c.Upstream.UserAgent)
	c.Storage.Driver = StorageDriver(normalizeName(string(c.Storage.Driver)))
	c.Storage.Dir = strings.TrimSpace(c.Storage.Dir)
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	c.Discovery.PageURL = strings.TrimSpace(c.Discovery.PageURL)
	c.Discovery.Schedule = strings.TrimSpace(c.Discovery.Schedule)
	c.Batch.Schedule = strings.TrimSpace(c.Batch.Schedule)
	c.Batch.AccountsFile = strings.TrimSpace(c.Batch.AccountsFile)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)

	if c.Upstream.Burst <= 0 {
		c.Upstream.Burst = 1
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Storage.MemoSize <= 0 {
		c.Storage.MemoSize = 4096
	}
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return invalid("environment must be one of dev, staging, prod")
	}

	if _, err := c.Catalog(); err != nil {
		return err
	}
	if c.Upstream.Timeout <= 0 {
		return invalid("upstream timeout must be > 0")
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return invalid("upstream requestsPerSecond must be >= 0")
	}

	if c.Retry.InitialInterval < 0 || c.Retry.MaxInterval < 0 {
		return invalid("retry intervals must be >= 0")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return invalid("retry jitter must be within [0, 1]")
	}

	if err := validateSchedule("batch schedule", c.Batch.Schedule); err != nil {
		return err
	}
	if c.Discovery.Enabled {
		if c.Discovery.Timeout <= 0 {
			return invalid("discovery timeout must be > 0")
		}
		if err := validateSchedule("discovery schedule", c.Discovery.Schedule); err != nil {
			return err
		}
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Dir == "" {
			return invalid("storage dir required for file driver")
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return invalid("storage dsn required for postgres driver")
		}
	default:
		return invalid("storage driver must be one of memory, file, postgres")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return invalid("telemetry serviceName required")
	}
	return nil
}

// Catalog builds the endpoint catalog described by the upstream section.
func (c AppConfig) Catalog() (*gamemode.Catalog, error) {
	return gamemode.NewCatalog(c.Upstream.BaseURL, c.Upstream.Paths)
}

// HiscoreConfig returns the lookup client settings.
func (c AppConfig) HiscoreConfig() hiscore.Config {
	return hiscore.Config{
		Timeout:           c.Upstream.Timeout,
		RequestsPerSecond: c.Upstream.RequestsPerSecond,
		Burst:             c.Upstream.Burst,
		UserAgent:         c.Upstream.UserAgent,
	}
}

// RetryPolicy returns the probe retry policy.
func (c AppConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		Multiplier:      c.Retry.Multiplier,
		Jitter:          c.Retry.Jitter,
	}
}

// DiscoveryPageURL returns the page scraped for the activity list, defaulting to the main
// leaderboard's overview page.
func (c AppConfig) DiscoveryPageURL(catalog *gamemode.Catalog) string {
	if c.Discovery.PageURL != "" {
		return c.Discovery.PageURL
	}
	if ep, ok := catalog.Endpoint(gamemode.Main); ok {
		return ep.Discovery
	}
	return ""
}

// TelemetryConfig overlays the telemetry section on the environment-derived defaults.
func (c AppConfig) TelemetryConfig() telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = cfg.Enabled || c.Telemetry.Enabled
	if c.Telemetry.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	}
	if c.Telemetry.ServiceName != "" {
		cfg.ServiceName = c.Telemetry.ServiceName
	}
	cfg.OTLPInsecure = cfg.OTLPInsecure || c.Telemetry.OTLPInsecure
	cfg.EnableMetrics = cfg.EnableMetrics && c.Telemetry.EnableMetrics
	cfg.Environment = string(c.Environment)
	return cfg
}

func validateSchedule(name, spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return errs.New("config/validate", errs.CodeFatalConfig,
			errs.WithMessage(name+" invalid"), errs.WithCause(err))
	}
	return nil
}

func invalid(msg string) error {
	return errs.New("config/validate", errs.CodeFatalConfig, errs.WithMessage(msg))
}

func fatal(msg string, err error) error {
	return errs.New("config/load", errs.CodeFatalConfig, errs.WithMessage(msg), errs.WithCause(err))
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := filepath.Clean(strings.TrimSpace(path))

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
