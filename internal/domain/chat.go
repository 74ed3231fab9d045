package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// TurnRole identifies who produced a turn.
type TurnRole string

const (
	RoleUser TurnRole = "user"
	RoleBot  TurnRole = "bot"
)

// TurnType distinguishes plain text turns from news turns.
type TurnType string

const (
	TurnText TurnType = "text"
	TurnNews TurnType = "news"
)

// DefaultTitle is the sentinel title of a conversation before the first
// user turn arrives.
const DefaultTitle = "New Chat"

// titleMaxLen is the number of characters of the first user turn kept as
// the conversation title.
const titleMaxLen = 30

// Article is a news item consumed from the news-fetch collaborator.
type Article struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	PubDate     time.Time `json:"pub_date"`
}

// Turn is one message exchange unit. Turns are immutable once appended
// to a conversation.
type Turn struct {
	Role    TurnRole `json:"role"`
	Type    TurnType `json:"type,omitempty"`
	Content string   `json:"content"`
	// News is present only when Type is TurnNews.
	News []Article `json:"news,omitempty"`
	// DetectedLanguage is set on bot turns that answered a backend
	// query; it records the language tag of the exchange.
	DetectedLanguage string    `json:"detected_language,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Conversation is a titled, append-only sequence of turns.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Turns       []Turn    `json:"turns"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewConversation creates an empty conversation with the sentinel title.
func NewConversation() Conversation {
	now := time.Now().UTC()
	return Conversation{
		ID:          NewConversationID(now),
		Title:       DefaultTitle,
		Turns:       []Turn{},
		LastUpdated: now,
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewConversationID generates a conversation identifier from the creation
// time plus a 9-character random suffix.
func NewConversationID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return fmt.Sprintf("chat_%d_%s", now.UnixMilli(), suffix)
}

// DeriveTitle produces a conversation title from the first user turn's
// content: at most 30 characters, with an ellipsis when truncated.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	return string(runes[:titleMaxLen]) + "..."
}

// IsValidTurnRole reports whether r is a known role.
func IsValidTurnRole(r TurnRole) bool {
	return r == RoleUser || r == RoleBot
}

// Validate checks a turn before it is appended.
func (t Turn) Validate() error {
	if !IsValidTurnRole(t.Role) {
		return fmt.Errorf("invalid turn role %q", t.Role)
	}
	if t.Type == TurnNews && t.Role != RoleBot {
		return fmt.Errorf("news turns must have role %q", RoleBot)
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("turn content is empty")
	}
	return nil
}
