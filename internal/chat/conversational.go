package chat

import (
	"context"
	"strings"
	"time"

	"karebot/internal/domain"
)

// DefaultReplyDelay paces scripted replies so they do not appear
// instantaneous.
const DefaultReplyDelay = 500 * time.Millisecond

// greeting pairs a trigger phrase with its scripted reply. Order
// matters: the first phrase contained in the input wins.
type greeting struct {
	phrase string
	reply  string
}

var greetings = []greeting{
	{"hi", "Hello! How can I help you today?"},
	{"hello", "Hi there! What can I assist you with?"},
	{"hey", "Hey! What would you like to know?"},
	{"howdy", "Howdy! How can I assist?"},
	{"good morning", "Good morning! How can I help?"},
	{"good afternoon", "Good afternoon! What do you need?"},
	{"good evening", "Good evening! How can I help?"},
	{"thanks", "You're welcome!"},
	{"thank you", "Happy to help!"},
	{"bye", "Goodbye! Feel free to ask anytime."},
	{"goodbye", "See you later!"},
	{"ok", "Sure, anything else?"},
	{"okay", "Alright!"},
}

// Conversational answers greetings and closings from a fixed table
// without touching the backend.
type Conversational struct {
	delay time.Duration
}

// NewConversational creates the strategy. delay <= 0 uses the default
// reply delay.
func NewConversational(delay time.Duration) *Conversational {
	if delay <= 0 {
		delay = DefaultReplyDelay
	}
	return &Conversational{delay: delay}
}

func (c *Conversational) Name() string { return "conversational" }

func (c *Conversational) Respond(ctx context.Context, q Query) (domain.Turn, bool, error) {
	for _, g := range greetings {
		if !strings.Contains(q.Lower, g.phrase) {
			continue
		}
		if err := sleepCtx(ctx, c.delay); err != nil {
			return domain.Turn{}, false, err
		}
		return domain.Turn{
			Role:    domain.RoleBot,
			Type:    domain.TurnText,
			Content: g.reply,
		}, true, nil
	}
	return domain.Turn{}, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
