package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/coachpo/scribe/internal/activity"
	"github.com/coachpo/scribe/internal/batch"
	"github.com/coachpo/scribe/internal/config"
	"github.com/coachpo/scribe/internal/hiscore"
	"github.com/coachpo/scribe/internal/ingest"
	"github.com/coachpo/scribe/internal/modecache"
	"github.com/coachpo/scribe/internal/persistence/migrations"
	"github.com/coachpo/scribe/internal/persistence/postgres"
	"github.com/coachpo/scribe/internal/resolver"
	"github.com/coachpo/scribe/internal/snapshot"
	"github.com/coachpo/scribe/internal/telemetry"
)

// app holds the wired ingestion components for one process.
type app struct {
	index     *activity.Index
	modeCache *modecache.Cache
	service   *ingest.Service
	runner    *batch.Runner
	telemetry *telemetry.Provider

	closers []func()
}

type stores struct {
	modeCache modecache.Store
	activity  activity.CacheStore
	snapshots snapshot.Store
	close     func()
}

func buildApp(ctx context.Context, cfg config.AppConfig, logger *log.Logger) (*app, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	provider, err := initTelemetry(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{telemetry: provider}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	if st.close != nil {
		a.closers = append(a.closers, st.close)
	}

	cache, err := modecache.New(st.modeCache,
		modecache.WithMemoSize(cfg.Storage.MemoSize),
		modecache.WithLogger(logger))
	if err != nil {
		a.close(logger)
		return nil, err
	}
	a.modeCache = cache
	a.closers = append(a.closers, cache.Close)

	var discovery activity.Discovery
	if cfg.Discovery.Enabled {
		discovery = activity.NewDiscoverer(cfg.DiscoveryPageURL(catalog), cfg.Discovery.Timeout, cfg.RetryPolicy(), logger)
	}
	a.index = activity.NewIndex(discovery, st.activity, activity.WithLogger(logger))

	client := hiscore.New(catalog, cfg.HiscoreConfig(), logger)
	res := resolver.New(client, cache, resolver.Config{
		Retry:               cfg.RetryPolicy(),
		ProbeFallenHardcore: cfg.Resolver.ProbeFallenHardcore,
	}, logger)
	a.service = ingest.New(res, a.index, st.snapshots, logger)
	a.runner = batch.NewRunner(a.service, cfg.Batch.Concurrency.Workers(), logger)
	return a, nil
}

func openStores(ctx context.Context, cfg config.AppConfig, logger *log.Logger) (stores, error) {
	switch cfg.Storage.Driver {
	case config.StorageFile:
		dir := cfg.Storage.Dir
		return stores{
			modeCache: modecache.NewFileStore(filepath.Join(dir, "modecache.json")),
			activity:  activity.NewFileCacheStore(filepath.Join(dir, "activity-index.json")),
			snapshots: snapshot.NewFileStore(filepath.Join(dir, "snapshots")),
		}, nil
	case config.StoragePostgres:
		if err := migrations.Apply(ctx, cfg.Storage.DSN, migrations.Embedded, logger); err != nil {
			return stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		pg, err := postgres.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			return stores{}, err
		}
		return stores{
			modeCache: pg.ModeCache,
			activity:  pg.Activity,
			snapshots: pg.Snapshots,
			close:     pg.Close,
		}, nil
	default:
		return stores{
			modeCache: modecache.NewMemoryStore(),
			activity:  activity.NewMemoryCacheStore(),
			snapshots: snapshot.NewMemoryStore(),
		}, nil
	}
}

func initTelemetry(ctx context.Context, logger *log.Logger, cfg config.AppConfig) (*telemetry.Provider, error) {
	telemetryCfg := cfg.TelemetryConfig()
	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	}
	return provider, nil
}

// close releases stores in reverse order and flushes telemetry.
func (a *app) close(logger *log.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			logger.Printf("shutdown: telemetry failed: %v", err)
		}
	}
}
