//go:build sqlite && !postgres

package main

import (
	"os"

	"karebot/internal/observability"
	"karebot/internal/storage"
	sqlitestore "karebot/internal/storage/sqlite"
)

// selectKV returns a SQLite-backed KV when built with the 'sqlite' tag.
// Configure with env var SQLITE_DSN (e.g., file:karebot.db?cache=shared&_fk=1)
func selectKV(logger observability.Logger) storage.KV {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	dsn := os.Getenv("SQLITE_DSN")
	if dsn == "" {
		dsn = "file:karebot.db?cache=shared&_fk=1"
	}
	st, err := sqlitestore.New(dsn)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", "error", err)
		return storage.NewMemoryKV()
	}
	logger.Info("using sqlite store", "dsn", dsn)
	return st
}

// sqliteStatus returns migration status when built with sqlite tag.
func sqliteStatus(dsn string) string {
	s, err := sqlitestore.Status(dsn)
	if err != nil {
		return ""
	}
	return s
}

// postgresStatus is a no-op for sqlite builds.
func postgresStatus() string { return "" }
