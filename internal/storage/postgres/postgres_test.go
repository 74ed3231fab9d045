//go:build postgres

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"karebot/internal/domain"
	"karebot/internal/storage"
)

// testDB holds a shared database connection for test suites.
// It's initialized once via TestMain and reused across test functions.
var testDB struct {
	connStr   string
	kv        *KV
	container testcontainers.Container
}

// TestMain sets up a PostgreSQL database for tests.
// It supports two modes:
//  1. DATABASE_URL env var - uses an existing PostgreSQL instance (CI/custom)
//  2. testcontainers-go - automatically starts a PostgreSQL container
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("karebot_test"),
			tcpostgres.WithUsername("karebot"),
			tcpostgres.WithPassword("karebot"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}
		testDB.container = container

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
			_ = container.Terminate(ctx)
			os.Exit(1)
		}
	}
	testDB.connStr = connStr

	kv, err := New(connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create kv store: %v\n", err)
		if testDB.container != nil {
			_ = testDB.container.Terminate(ctx)
		}
		os.Exit(1)
	}
	testDB.kv = kv

	code := m.Run()

	_ = kv.Close()
	if testDB.container != nil {
		_ = testDB.container.Terminate(ctx)
	}
	os.Exit(code)
}

func resetKV(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, key := range []string{"kare_chats"} {
		if err := testDB.kv.Delete(ctx, key); err != nil {
			t.Fatalf("reset %s: %v", key, err)
		}
	}
	for _, key := range domain.SettingKeys {
		if err := testDB.kv.Delete(ctx, "kare_settings_"+key); err != nil {
			t.Fatalf("reset setting %s: %v", key, err)
		}
	}
}

func TestKVRoundTrip(t *testing.T) {
	resetKV(t)
	ctx := context.Background()

	if _, ok, err := testDB.kv.Get(ctx, "kare_chats"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := testDB.kv.Set(ctx, "kare_chats", `[]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := testDB.kv.Set(ctx, "kare_chats", `[{"id":"chat_1_abc"}]`); err != nil {
		t.Fatalf("set (upsert): %v", err)
	}
	v, ok, err := testDB.kv.Get(ctx, "kare_chats")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if v != `[{"id":"chat_1_abc"}]` {
		t.Fatalf("get value = %q", v)
	}
	if err := testDB.kv.Delete(ctx, "kare_chats"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := testDB.kv.Get(ctx, "kare_chats"); ok {
		t.Fatalf("expected key gone after delete")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	// A second New against the same database must not fail.
	kv, err := New(testDB.connStr)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	defer kv.Close()
	if err := kv.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestStoreOverPostgres(t *testing.T) {
	resetKV(t)
	ctx := context.Background()

	s, err := storage.NewKVStore(ctx, testDB.kv)
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	c, err := s.AppendTurn(ctx, domain.Turn{Role: domain.RoleUser, Type: domain.TurnText, Content: "When does admission open?"})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if c.Title != "When does admission open?" {
		t.Fatalf("title = %q", c.Title)
	}
	if _, err := s.SetSetting(ctx, domain.SettingVoiceOutput, json.RawMessage(`true`)); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	reloaded, err := storage.NewKVStore(ctx, testDB.kv)
	if err != nil {
		t.Fatalf("NewKVStore (reload): %v", err)
	}
	got, err := reloaded.ActiveConversation(ctx)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	if len(got.Turns) != 1 || got.Turns[0].Content != "When does admission open?" {
		t.Fatalf("turns not persisted: %+v", got.Turns)
	}
	settings, err := reloaded.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if !settings.VoiceOutput {
		t.Fatalf("voiceOutput not persisted")
	}
}
