// Package chat implements the session pipeline: language detection,
// query classification, and the ordered response strategies.
package chat

import (
	"context"
	"errors"

	"karebot/internal/domain"
	"karebot/internal/language"
	"karebot/internal/observability"
)

// Query is the classified input handed to each strategy.
type Query struct {
	// Text is the trimmed original input.
	Text string
	// Lower is Text lowercased, used for keyword matching.
	Lower string
	// Language is the locally detected language tag.
	Language language.Tag
	// SessionID is the active conversation id.
	SessionID string
}

// Strategy produces a reply for queries it recognizes. Respond returns
// ok=false when the strategy does not apply; an error also counts as
// not applicable and routing continues.
type Strategy interface {
	Name() string
	Respond(ctx context.Context, q Query) (domain.Turn, bool, error)
}

// ErrNoStrategy is returned when no strategy produced a reply. With the
// fallback strategy registered last this never happens in practice.
var ErrNoStrategy = errors.New("chat: no strategy produced a reply")

// Router tries strategies in registration order and returns the first
// reply.
type Router struct {
	strategies []Strategy
	log        observability.Logger
}

// NewRouter creates a router over the given ordered strategies.
func NewRouter(log observability.Logger, strategies ...Strategy) *Router {
	if log == nil {
		log = observability.NewLogger(observability.DefaultConfig())
	}
	return &Router{strategies: strategies, log: log.WithComponent("router")}
}

// Route returns the reply turn and the name of the strategy that
// produced it.
func (r *Router) Route(ctx context.Context, q Query) (domain.Turn, string, error) {
	for _, s := range r.strategies {
		turn, ok, err := s.Respond(ctx, q)
		if err != nil {
			r.log.WarnContext(ctx, "strategy failed, trying next", "strategy", s.Name(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		return turn, s.Name(), nil
	}
	return domain.Turn{}, "", ErrNoStrategy
}
