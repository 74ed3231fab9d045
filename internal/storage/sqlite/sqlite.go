//go:build sqlite

// Package sqlite provides the SQLite-backed key-value store used when
// the binary is built with the sqlite tag.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"karebot/internal/storage"
)

type KV struct {
	db *sql.DB
}

var _ storage.KV = (*KV)(nil)
var _ storage.HealthCheck = (*KV)(nil)

func New(dsn string) (*KV, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &KV{db: db}, nil
}

// Status returns a schema_migrations and schema_info summary for the
// given DSN without opening a long-lived store.
func Status(dsn string) (string, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()
	var latest, count int
	_ = db.QueryRow(`SELECT COALESCE(MAX(version),0) FROM schema_migrations`).Scan(&latest)
	_ = db.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&count)
	var schemaVersion int
	var appVersion, appliedAt string
	_ = db.QueryRow(`SELECT schema_version, app_version, applied_at FROM schema_info WHERE id=1`).Scan(&schemaVersion, &appVersion, &appliedAt)
	return fmt.Sprintf("schema_version=%d applied=%d latest=%d app_version=%s applied_at=%s", schemaVersion, count, latest, appVersion, appliedAt), nil
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv(k, v, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET v=excluded.v, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *KV) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k=?`, key)
	return err
}

func (s *KV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *KV) Close() error {
	return s.db.Close()
}
