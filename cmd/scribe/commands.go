package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/robfig/cron/v3"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/activity"
	"github.com/coachpo/scribe/internal/batch"
	"github.com/coachpo/scribe/internal/config"
	"github.com/coachpo/scribe/internal/delta"
	"github.com/coachpo/scribe/internal/gamemode"
)

var errFailures = errors.New("one or more accounts failed")

func runSnapshot(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	modeFlag := fs.String("mode", "", "Requested gamemode (main, ironman, hardcore, ultimate, deadman, tournament, seasonal)")
	refresh := fs.Bool("refresh-index", false, "Run live activity discovery before ingesting")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: snapshot requires at least one account", errUsage)
	}
	mode, err := gamemode.ParseMode(*modeFlag)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	requests := make([]batch.Request, 0, fs.NArg())
	for _, account := range fs.Args() {
		requests = append(requests, batch.Request{Account: account, Mode: mode})
	}
	return ingestAll(ctx, cfg, requests, *refresh, stdout, logger)
}

func runBatch(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", cfg.Batch.AccountsFile, "YAML accounts file")
	refresh := fs.Bool("refresh-index", false, "Run live activity discovery before ingesting")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if strings.TrimSpace(*file) == "" {
		return fmt.Errorf("%w: batch requires -file", errUsage)
	}
	requests, err := batch.LoadRequests(*file)
	if err != nil {
		return err
	}
	return ingestAll(ctx, cfg, requests, *refresh, stdout, logger)
}

func runRefreshIndex(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("refresh-index", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	ordering, err := a.index.Resolve(ctx)
	if err != nil && !errs.Is(err, errs.CodeDiscoveryDegraded) {
		return err
	}
	if err != nil {
		logger.Printf("activity index degraded: %v", err)
	}
	return writeJSON(stdout, ordering)
}

func ingestAll(ctx context.Context, cfg config.AppConfig, requests []batch.Request, refresh bool, stdout io.Writer, logger *log.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	if refresh {
		refreshIndex(ctx, a.index, logger)
	}
	results := a.runner.Run(ctx, requests)
	logSummaries(results, logger)
	if err := writeJSON(stdout, results); err != nil {
		return err
	}
	for _, res := range results {
		if res.Status == batch.StatusFatalFailure || res.Status == batch.StatusTransientFailure {
			return errFailures
		}
	}
	return nil
}

func runDaemon(ctx context.Context, cfg config.AppConfig, args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", cfg.Batch.AccountsFile, "YAML accounts file ingested on the batch schedule")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if strings.TrimSpace(*file) == "" {
		return fmt.Errorf("%w: daemon requires -file or batch.accountsFile", errUsage)
	}
	if _, err := batch.LoadRequests(*file); err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	scheduler, err := newScheduler(ctx, cfg, a, *file, logger)
	if err != nil {
		return err
	}
	refreshIndex(ctx, a.index, logger)
	scheduler.Start()
	logger.Printf("daemon started: batch=%q discovery=%q", cfg.Batch.Schedule, cfg.Discovery.Schedule)

	<-ctx.Done()
	logger.Print("shutdown signal received, waiting for running jobs")
	stopped := scheduler.Stop()
	select {
	case <-stopped.Done():
		logger.Print("shutdown: scheduler stopped")
	case <-time.After(cronStopTimeout):
		logger.Print("shutdown: scheduler stop timed out")
	}
	return nil
}

func newScheduler(ctx context.Context, cfg config.AppConfig, a *app, file string, logger *log.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))))
	if cfg.Batch.Schedule != "" {
		if _, err := c.AddFunc(cfg.Batch.Schedule, func() {
			requests, err := batch.LoadRequests(file)
			if err != nil {
				logger.Printf("scheduled batch skipped: %v", err)
				return
			}
			logSummaries(a.runner.Run(ctx, requests), logger)
		}); err != nil {
			return nil, errs.New("daemon/schedule", errs.CodeFatalConfig, errs.WithMessage("batch schedule"), errs.WithCause(err))
		}
	}
	if cfg.Discovery.Enabled && cfg.Discovery.Schedule != "" {
		if _, err := c.AddFunc(cfg.Discovery.Schedule, func() {
			refreshIndex(ctx, a.index, logger)
		}); err != nil {
			return nil, errs.New("daemon/schedule", errs.CodeFatalConfig, errs.WithMessage("discovery schedule"), errs.WithCause(err))
		}
	}
	return c, nil
}

func refreshIndex(ctx context.Context, index *activity.Index, logger *log.Logger) {
	done := index.RefreshAsync(ctx)
	if done == nil {
		logger.Print("activity index refresh already running")
		return
	}
	if err := <-done; err != nil {
		logger.Printf("activity index degraded: %v", errs.Message(err))
	}
}

func logSummaries(results []batch.Result, logger *log.Logger) {
	for _, res := range results {
		switch {
		case res.Status != batch.StatusSuccess:
			logger.Printf("%s: %s (%s) %s", res.Account, res.Status, res.ErrorClass, res.Message)
		case res.Delta != nil:
			logger.Printf("%s [%s]: %s", res.Account, res.ResolvedMode, delta.Summarize(res.Delta))
		default:
			logger.Printf("%s [%s]: first snapshot recorded", res.Account, res.ResolvedMode)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
