// Package dbmigrations exposes embedded SQL migrations for scribe binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into scribe binaries.
//
//go:embed *.sql
var Files embed.FS
