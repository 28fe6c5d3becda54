package migrations

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dbmigrations "github.com/coachpo/scribe/db/migrations"
)

func TestResolveDirSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "migrations")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir temp migrations: %v", err)
	}

	resolved, err := resolveDir(path)
	if err != nil {
		t.Fatalf("resolveDir returned error: %v", err)
	}
	if !filepath.IsAbs(resolved) || resolved != filepath.Clean(resolved) {
		t.Fatalf("expected clean absolute path, got %s", resolved)
	}
}

func TestResolveDirMissing(t *testing.T) {
	_, err := resolveDir(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestResolveDirFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if _, err := resolveDir(path); !errors.Is(err, errNotDirectory) {
		t.Fatalf("expected errNotDirectory, got %v", err)
	}
}

func TestFileURL(t *testing.T) {
	for _, path := range []string{"/tmp/migrations", "C:/tmp/migrations"} {
		got := fileURL(path)
		if !strings.HasPrefix(got, "file://") || len(got) <= len("file://") {
			t.Fatalf("unexpected file url for %s: %s", path, got)
		}
	}
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	entries, err := fs.Glob(dbmigrations.Files, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded migrations: %v", err)
	}
	ups, downs := 0, 0
	for _, name := range entries {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
			if _, err := fs.Stat(dbmigrations.Files, strings.TrimSuffix(name, ".up.sql")+".down.sql"); err != nil {
				t.Fatalf("missing down migration for %s", name)
			}
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected paired migrations, got %d up and %d down", ups, downs)
	}
}

func TestApplyValidatesPathBeforeConnecting(t *testing.T) {
	err := Apply(context.Background(), "postgresql://invalid", "does-not-exist", nil)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected missing directory error, got %v", err)
	}
}

func TestRollbackValidatesInput(t *testing.T) {
	if err := Rollback(context.Background(), "postgresql://invalid", "still-missing", 0, nil); err == nil {
		t.Fatal("expected error for zero steps")
	}
	err := Rollback(context.Background(), "postgresql://invalid", "still-missing", 1, nil)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected missing directory error, got %v", err)
	}
}
