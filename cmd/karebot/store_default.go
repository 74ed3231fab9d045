//go:build !sqlite && !postgres

package main

import (
	"os"

	"karebot/internal/observability"
	"karebot/internal/storage"
)

// selectKV returns the default in-memory backend when built without the
// 'sqlite' or 'postgres' tags. If a DSN is set, we log a hint to rebuild
// with the matching tag.
func selectKV(logger observability.Logger) storage.KV {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	if os.Getenv("SQLITE_DSN") != "" {
		logger.Warn("SQLITE_DSN set, but binary not built with -tags sqlite; using in-memory store")
	}
	if os.Getenv("DATABASE_URL") != "" {
		logger.Warn("DATABASE_URL set, but binary not built with -tags postgres; using in-memory store")
	}
	return storage.NewMemoryKV()
}

// sqliteStatus returns schema status string when not built with sqlite tag.
func sqliteStatus(dsn string) string { return "" }

// postgresStatus is a no-op without the postgres tag.
func postgresStatus() string { return "" }
