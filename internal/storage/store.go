// Package storage defines the persistence contracts for conversations
// and settings plus the KV-backed store implementation shared by all
// backends.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"karebot/internal/domain"
)

const (
	chatsKey          = "kare_chats"
	settingsKeyPrefix = "kare_settings_"
)

// ChatStore manages the conversation list and the active conversation.
type ChatStore interface {
	// ActiveConversation returns the conversation currently receiving turns.
	ActiveConversation(ctx context.Context) (domain.Conversation, error)
	// CreateConversation starts a fresh conversation and makes it active.
	CreateConversation(ctx context.Context) (domain.Conversation, error)
	// SwitchActive makes the conversation with the given id active.
	// Returns ErrNotFound when no conversation has that id.
	SwitchActive(ctx context.Context, id string) (domain.Conversation, error)
	// AppendTurn adds a turn to the active conversation and returns the
	// updated conversation.
	AppendTurn(ctx context.Context, turn domain.Turn) (domain.Conversation, error)
	// ListConversations returns all conversations, most recent first.
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	// ClearAll deletes every conversation and starts a fresh active one.
	ClearAll(ctx context.Context) (domain.Conversation, error)
}

// SettingsStore reads and writes user preferences.
type SettingsStore interface {
	Settings(ctx context.Context) (domain.Settings, error)
	// SetSetting updates one preference by key. Returns ErrValidation
	// for unknown keys or out-of-range values.
	SetSetting(ctx context.Context, key string, value json.RawMessage) (domain.Settings, error)
}

// HealthCheck is implemented by backends that can probe their
// underlying connection.
type HealthCheck interface {
	Ping(ctx context.Context) error
}

// Store is the full persistence surface the API server depends on.
type Store interface {
	ChatStore
	SettingsStore
}

// KVStore implements Store over a KV backend. The full conversation
// list is written back under one key on every mutation; each setting
// is stored under its own key so independent preferences never clobber
// each other.
type KVStore struct {
	mu sync.Mutex
	kv KV

	chats    []domain.Conversation
	activeID string
	now      func() time.Time
}

// NewKVStore loads existing state from the backend. Corrupt or missing
// persisted data is treated as absent and replaced with defaults; the
// store always holds at least one conversation.
func NewKVStore(ctx context.Context, kv KV) (*KVStore, error) {
	s := &KVStore{kv: kv, now: time.Now}
	raw, ok, err := kv.Get(ctx, chatsKey)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s.chats); err != nil {
			s.chats = nil
		}
	}
	if len(s.chats) == 0 {
		s.chats = []domain.Conversation{domain.NewConversation()}
		if err := s.persistChatsLocked(ctx); err != nil {
			return nil, err
		}
	}
	s.activeID = s.chats[0].ID
	return s, nil
}

func (s *KVStore) persistChatsLocked(ctx context.Context) error {
	b, err := json.Marshal(s.chats)
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}
	if err := s.kv.Set(ctx, chatsKey, string(b)); err != nil {
		return fmt.Errorf("persist conversations: %w", err)
	}
	return nil
}

func (s *KVStore) activeIndexLocked() int {
	for i := range s.chats {
		if s.chats[i].ID == s.activeID {
			return i
		}
	}
	return 0
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	out := c
	out.Turns = make([]domain.Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	return out
}

func (s *KVStore) ActiveConversation(_ context.Context) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneConversation(s.chats[s.activeIndexLocked()]), nil
}

func (s *KVStore) CreateConversation(ctx context.Context) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.NewConversation()
	c.LastUpdated = s.now()
	s.chats = append([]domain.Conversation{c}, s.chats...)
	if err := s.persistChatsLocked(ctx); err != nil {
		s.chats = s.chats[1:]
		return domain.Conversation{}, err
	}
	s.activeID = c.ID
	return cloneConversation(c), nil
}

func (s *KVStore) SwitchActive(_ context.Context, id string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.chats {
		if s.chats[i].ID == id {
			s.activeID = id
			return cloneConversation(s.chats[i]), nil
		}
	}
	return domain.Conversation{}, fmt.Errorf("conversation %q: %w", id, ErrNotFound)
}

func (s *KVStore) AppendTurn(ctx context.Context, turn domain.Turn) (domain.Conversation, error) {
	if err := turn.Validate(); err != nil {
		return domain.Conversation{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.activeIndexLocked()
	prev := cloneConversation(s.chats[i])
	c := &s.chats[i]
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	c.Turns = append(c.Turns, turn)
	c.LastUpdated = s.now()
	if c.Title == domain.DefaultTitle && turn.Role == domain.RoleUser {
		c.Title = domain.DeriveTitle(turn.Content)
	}
	if err := s.persistChatsLocked(ctx); err != nil {
		s.chats[i] = prev
		return domain.Conversation{}, err
	}
	return cloneConversation(*c), nil
}

func (s *KVStore) ListConversations(_ context.Context) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, len(s.chats))
	for i, c := range s.chats {
		out[i] = cloneConversation(c)
	}
	return out, nil
}

func (s *KVStore) ClearAll(ctx context.Context) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, prevActive := s.chats, s.activeID
	c := domain.NewConversation()
	c.LastUpdated = s.now()
	s.chats = []domain.Conversation{c}
	if err := s.persistChatsLocked(ctx); err != nil {
		s.chats, s.activeID = prev, prevActive
		return domain.Conversation{}, err
	}
	s.activeID = c.ID
	return cloneConversation(c), nil
}

func (s *KVStore) Settings(ctx context.Context) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked(ctx)
}

func (s *KVStore) settingsLocked(ctx context.Context) (domain.Settings, error) {
	out := domain.DefaultSettings()
	for _, key := range domain.SettingKeys {
		raw, ok, err := s.kv.Get(ctx, settingsKeyPrefix+key)
		if err != nil {
			return domain.Settings{}, fmt.Errorf("load setting %s: %w", key, err)
		}
		if !ok {
			continue
		}
		// A stored value that no longer validates falls back to the default.
		if err := out.Apply(key, json.RawMessage(raw)); err != nil {
			continue
		}
	}
	return out, nil
}

func (s *KVStore) SetSetting(ctx context.Context, key string, value json.RawMessage) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.settingsLocked(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := cur.Apply(key, value); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	canonical, err := cur.Value(key)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.kv.Set(ctx, settingsKeyPrefix+key, string(canonical)); err != nil {
		return domain.Settings{}, fmt.Errorf("persist setting %s: %w", key, err)
	}
	return cur, nil
}

// Ping delegates to the backend when it supports health checks.
func (s *KVStore) Ping(ctx context.Context) error {
	if hc, ok := s.kv.(HealthCheck); ok {
		return hc.Ping(ctx)
	}
	return nil
}
