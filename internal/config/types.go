package config

import "strings"

// Environment identifies the runtime environment scribe operates in.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// StorageDriver selects the persistence backend for snapshots and caches.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"
	StorageFile     StorageDriver = "file"
	StoragePostgres StorageDriver = "postgres"
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
