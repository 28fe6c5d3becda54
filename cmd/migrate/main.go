// Command migrate applies or rolls back scribe's Postgres schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/coachpo/scribe/internal/persistence/migrations"
)

const defaultTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	var (
		dsn     = fs.String("database", os.Getenv("SCRIBE_DATABASE_DSN"), "PostgreSQL DSN (default: $SCRIBE_DATABASE_DSN)")
		dir     = fs.String("path", migrations.Embedded, "Directory containing SQL migrations (default: embedded)")
		timeout = fs.Duration("timeout", defaultTimeout, "Maximum time to wait for database connectivity")
		quiet   = fs.Bool("quiet", false, "Suppress informational logs")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*dsn) == "" {
		return errors.New("-database flag or SCRIBE_DATABASE_DSN is required")
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("command required (up|down)")
	}

	var logger *log.Logger
	if !*quiet {
		logger = log.New(os.Stdout, "scribe-migrate ", log.LstdFlags)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch rest[0] {
	case "up":
		return migrations.Apply(ctx, *dsn, *dir, logger)
	case "down":
		steps := 1
		if len(rest) > 1 {
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return fmt.Errorf("invalid down steps %q: %w", rest[1], err)
			}
			steps = n
		}
		return migrations.Rollback(ctx, *dsn, *dir, steps, logger)
	default:
		return fmt.Errorf("unknown command %q (expected up or down)", rest[0])
	}
}
