package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"karebot/internal/domain"
)

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	s, err := NewKVStore(context.Background(), NewMemoryKV())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	return s
}

func TestNewKVStore_SeedsActiveConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c, err := s.ActiveConversation(ctx)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	if c.ID == "" || c.Title != domain.DefaultTitle || len(c.Turns) != 0 {
		t.Fatalf("unexpected seeded conversation: %+v", c)
	}
}

func TestNewKVStore_CorruptDataReinitializes(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	if err := kv.Set(ctx, chatsKey, "{not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s, err := NewKVStore(ctx, kv)
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	list, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one fresh conversation, got %d", len(list))
	}
}

func TestCreateConversation_BecomesActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.CreateConversation(ctx)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	active, err := s.ActiveConversation(ctx)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("active = %s, want %s", active.ID, created.ID)
	}
	list, _ := s.ListConversations(ctx)
	if len(list) != 2 || list[0].ID != created.ID {
		t.Fatalf("new conversation not at front of list: %+v", list)
	}
}

func TestSwitchActive_UnknownID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SwitchActive(context.Background(), "chat_0_nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendTurn_DerivesTitleOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c, err := s.AppendTurn(ctx, domain.Turn{Role: domain.RoleUser, Type: domain.TurnText, Content: "What are the tuition fees?"})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if c.Title != "What are the tuition fees?" {
		t.Fatalf("title = %q", c.Title)
	}
	c, err = s.AppendTurn(ctx, domain.Turn{Role: domain.RoleUser, Type: domain.TurnText, Content: "Second question about something else"})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if c.Title != "What are the tuition fees?" {
		t.Fatalf("title changed on second turn: %q", c.Title)
	}
	if len(c.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(c.Turns))
	}
}

func TestAppendTurn_BotTurnKeepsDefaultTitle(t *testing.T) {
	s := newTestStore(t)
	c, err := s.AppendTurn(context.Background(), domain.Turn{Role: domain.RoleBot, Type: domain.TurnText, Content: "Hello there"})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if c.Title != domain.DefaultTitle {
		t.Fatalf("title = %q, want default", c.Title)
	}
}

func TestAppendTurn_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AppendTurn(context.Background(), domain.Turn{Role: "nobody", Content: "x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAppendTurn_StampsTimestamp(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	c, err := s.AppendTurn(context.Background(), domain.Turn{Role: domain.RoleUser, Type: domain.TurnText, Content: "hi"})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if !c.Turns[0].Timestamp.Equal(fixed) || !c.LastUpdated.Equal(fixed) {
		t.Fatalf("timestamps not stamped: %+v", c)
	}
}

func TestClearAll_NeverEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateConversation(ctx); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	fresh, err := s.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	list, _ := s.ListConversations(ctx)
	if len(list) != 1 || list[0].ID != fresh.ID {
		t.Fatalf("expected single fresh conversation, got %+v", list)
	}
	active, _ := s.ActiveConversation(ctx)
	if active.ID != fresh.ID {
		t.Fatalf("active = %s, want %s", active.ID, fresh.ID)
	}
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s, err := NewKVStore(ctx, kv)
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	if _, err := s.AppendTurn(ctx, domain.Turn{Role: domain.RoleUser, Type: domain.TurnText, Content: "remember me"}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	reloaded, err := NewKVStore(ctx, kv)
	if err != nil {
		t.Fatalf("NewKVStore (reload): %v", err)
	}
	c, err := reloaded.ActiveConversation(ctx)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	if len(c.Turns) != 1 || c.Turns[0].Content != "remember me" {
		t.Fatalf("turns not persisted: %+v", c.Turns)
	}
}

func TestSettings_Defaults(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	want := domain.DefaultSettings()
	if got != want {
		t.Fatalf("Settings = %+v, want %+v", got, want)
	}
}

func TestSetSetting_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	got, err := s.SetSetting(ctx, domain.SettingTheme, json.RawMessage(`"light"`))
	if err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if got.Theme != "light" {
		t.Fatalf("theme = %q", got.Theme)
	}
	again, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if again.Theme != "light" {
		t.Fatalf("theme not persisted: %q", again.Theme)
	}
	// Other settings keep their defaults.
	if !again.AutoScroll || !again.ShowTimestamps {
		t.Fatalf("unrelated settings changed: %+v", again)
	}
}

func TestSetSetting_Invalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cases := []struct {
		key string
		raw string
	}{
		{domain.SettingTheme, `"purple"`},
		{domain.SettingFontSize, `"gigantic"`},
		{domain.SettingAutoScroll, `"yes"`},
		{"unknownKey", `true`},
	}
	for _, tc := range cases {
		if _, err := s.SetSetting(ctx, tc.key, json.RawMessage(tc.raw)); !errors.Is(err, ErrValidation) {
			t.Fatalf("SetSetting(%s, %s): expected ErrValidation, got %v", tc.key, tc.raw, err)
		}
	}
}

func TestSettings_CorruptValueFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	if err := kv.Set(ctx, settingsKeyPrefix+domain.SettingFontSize, `"colossal"`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s, err := NewKVStore(ctx, kv)
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	got, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if got.FontSize != "medium" {
		t.Fatalf("fontSize = %q, want default", got.FontSize)
	}
}
