// Command scribe ingests hiscore snapshots for one or many accounts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coachpo/scribe/internal/config"
)

const (
	loggerPrefix             = "scribe "
	telemetryShutdownTimeout = 5 * time.Second
	cronStopTimeout          = 30 * time.Second
)

var errUsage = errors.New("usage: scribe [-config path] <snapshot|batch|refresh-index|daemon> [flags]")

func main() {
	loadDotEnv()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, newLogger(os.Stderr)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func loadDotEnv() {
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, loggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) error {
	global := flag.NewFlagSet("scribe", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	cfgPath := global.String("config", "", fmt.Sprintf("Path to application configuration file (default: %s)", config.DefaultPath))
	if err := global.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	rest := global.Args()
	if len(rest) == 0 {
		return errUsage
	}

	cfg, loadedFromFile, err := config.LoadOrDefault(ctx, *cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s storage=%s discovery=%t",
		cfg.Environment, cfg.Storage.Driver, cfg.Discovery.Enabled)

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "snapshot":
		return runSnapshot(ctx, cfg, cmdArgs, stdout, logger)
	case "batch":
		return runBatch(ctx, cfg, cmdArgs, stdout, logger)
	case "refresh-index":
		return runRefreshIndex(ctx, cfg, cmdArgs, stdout, logger)
	case "daemon":
		return runDaemon(ctx, cfg, cmdArgs, logger)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
