// Package migrations wires golang-migrate execution for scribe's Postgres storage.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations loader
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	dbmigrations "github.com/coachpo/scribe/db/migrations"
	"github.com/coachpo/scribe/internal/telemetry"
)

// Embedded selects the SQL files compiled into the binary.
const Embedded = ""

var (
	errNotDirectory = errors.New("migrations path must be a directory")

	migrationsCounter   metric.Int64Counter
	migrationsCounterMu sync.Once
)

// Apply brings the database reachable via dsn up to the newest migration found in
// migrationsDir, or in the embedded set when migrationsDir is Embedded. A nil logger
// disables informational logging.
func Apply(ctx context.Context, dsn, migrationsDir string, logger *log.Logger) error {
	m, source, closeFn, err := open(ctx, dsn, migrationsDir, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if logger != nil {
		logger.Printf("running database migrations: source=%s", source)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			recordMigrationMetric(ctx, "up", "noop")
			if logger != nil {
				logger.Printf("database migrations up-to-date")
			}
			return nil
		}
		recordMigrationMetric(ctx, "up", "failed")
		return fmt.Errorf("apply migrations: %w", err)
	}
	if logger != nil {
		logger.Printf("database migrations applied successfully")
	}
	recordMigrationMetric(ctx, "up", "applied")
	return nil
}

// Rollback reverts the given number of migrations.
func Rollback(ctx context.Context, dsn, migrationsDir string, steps int, logger *log.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be > 0")
	}
	m, source, closeFn, err := open(ctx, dsn, migrationsDir, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if logger != nil {
		logger.Printf("rolling back %d database migration(s): source=%s", steps, source)
	}
	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, fs.ErrNotExist) {
			recordMigrationMetric(ctx, "down", "noop")
			return nil
		}
		recordMigrationMetric(ctx, "down", "failed")
		return fmt.Errorf("rollback migrations: %w", err)
	}
	recordMigrationMetric(ctx, "down", "applied")
	return nil
}

func open(ctx context.Context, dsn, migrationsDir string, logger *log.Logger) (*migrate.Migrate, string, func(), error) {
	sourceURL := "iofs://embedded"
	var sourceFS fs.FS
	if strings.TrimSpace(migrationsDir) == Embedded {
		sourceFS = dbmigrations.Files
	} else {
		resolvedDir, err := resolveDir(migrationsDir)
		if err != nil {
			return nil, "", nil, err
		}
		sourceURL = fileURL(resolvedDir)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open migrations connection: %w", err)
	}
	closeDB := func() {
		if cerr := db.Close(); cerr != nil && logger != nil {
			logger.Printf("database migrations close: %v", cerr)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, "", nil, fmt.Errorf("ping migrations database: %w", err)
	}

	var driverConfig pgxv5.Config
	driver, err := pgxv5.WithInstance(db, &driverConfig)
	if err != nil {
		closeDB()
		return nil, "", nil, fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	var m *migrate.Migrate
	if sourceFS != nil {
		src, serr := iofs.New(sourceFS, ".")
		if serr != nil {
			closeDB()
			return nil, "", nil, fmt.Errorf("open embedded migrations: %w", serr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "pgx5", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance(sourceURL, "pgx5", driver)
	}
	if err != nil {
		closeDB()
		return nil, "", nil, fmt.Errorf("initialise migrate instance: %w", err)
	}

	closeFn := func() {
		sourceErr, dbErr := m.Close()
		if logger == nil {
			return
		}
		if sourceErr != nil {
			logger.Printf("database migrations source close: %v", sourceErr)
		}
		if dbErr != nil {
			logger.Printf("database migrations db close: %v", dbErr)
		}
	}
	return m, sourceURL, closeFn, nil
}

func resolveDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", fmt.Errorf("migrations path required")
	}

	abs, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("resolve migrations path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("migrations directory: %w", err)
		}
		return "", fmt.Errorf("stat migrations directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("migrations directory: %w", errNotDirectory)
	}
	return abs, nil
}

func fileURL(path string) string {
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := new(url.URL)
	u.Scheme = "file"
	u.Path = slashed
	return u.String()
}

func recordMigrationMetric(ctx context.Context, direction, result string) {
	migrationsCounterMu.Do(func() {
		meter := otel.Meter("persistence.migrations")
		counter, err := meter.Int64Counter("db.migrations",
			metric.WithDescription("Migration runs executed via golang-migrate"),
			metric.WithUnit("{run}"))
		if err == nil {
			migrationsCounter = counter
		}
	})
	if migrationsCounter == nil {
		return
	}
	migrationsCounter.Add(ctx, 1, metric.WithAttributes(
		telemetry.OperationResultAttributes(telemetry.Environment(), "migrate."+direction, result)...))
}
