package chat

import (
	"context"
	"fmt"

	"karebot/internal/domain"
	"karebot/internal/knowledge"
	"karebot/internal/language"
)

// Knowledge queries the backend knowledge service. Any failure, a
// non-ok status, or an empty answer makes the strategy not applicable
// so the local fallback can answer instead.
type Knowledge struct {
	client knowledge.Client
}

func NewKnowledge(client knowledge.Client) *Knowledge {
	return &Knowledge{client: client}
}

func (k *Knowledge) Name() string { return "knowledge" }

func (k *Knowledge) Respond(ctx context.Context, q Query) (domain.Turn, bool, error) {
	if k.client == nil || !k.client.Available() {
		return domain.Turn{}, false, nil
	}

	ans, err := k.client.Query(ctx, q.Text, string(q.Language), q.SessionID)
	if err != nil {
		return domain.Turn{}, false, fmt.Errorf("query backend: %w", err)
	}

	// The backend's own language verdict, when reported and known,
	// overrides local detection.
	detected := string(q.Language)
	if ans.DetectedLanguage != "" && language.Known(language.Tag(ans.DetectedLanguage)) {
		detected = ans.DetectedLanguage
	}
	return domain.Turn{
		Role:             domain.RoleBot,
		Type:             domain.TurnText,
		Content:          ans.Text,
		DetectedLanguage: detected,
	}, true, nil
}
