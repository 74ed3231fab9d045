package chat

import (
	"context"
	"strings"
	"time"

	"karebot/internal/domain"
)

const (
	feeHelp = "**Fee Information**\n\nI can help you with fee structure! Try asking:\n\n" +
		"• \"What is the fee structure?\"\n• \"B.Tech fees\"\n• \"MBA fees\"\n" +
		"• \"Hostel fees\"\n• \"Scholarships available\""

	admissionHelp = "**Admission Information**\n\nI can provide admission details! Ask me:\n\n" +
		"• \"How to apply for B.Tech?\"\n• \"What is the admission process?\"\n" +
		"• \"Entrance exams accepted\"\n• \"Eligibility criteria\""

	placementHelp = "**Placement Information**\n\nI can tell you about placements! Try:\n\n" +
		"• \"What are the placements like?\"\n• \"Which companies recruit?\"\n" +
		"• \"Average package\"\n• \"Placement statistics\""

	generalHelp = "**KARE Information Assistant**\n\nI can help you with information about Kalasalingam University:\n\n" +
		"**Academics:** Programs, courses, departments\n**Fees:** Complete fee structure and scholarships\n" +
		"**Admissions:** Process, eligibility, entrance exams\n**Faculty:** Department information\n" +
		"**Campus:** Facilities, hostels, labs\n**Placements:** Companies, packages, statistics\n" +
		"**Research:** Innovation, patents, Ph.D programs\n**Student Life:** Clubs, events, activities\n\n" +
		"**Try asking:**\n• \"What is the fee structure?\"\n• \"Tell me about CSE department\"\n" +
		"• \"How to apply for MBA?\"\n• \"Which companies come for placements?\"\n" +
		"• \"What facilities are available?\""
)

// Fallback always answers with a canned help response keyed on topic
// words. It must be registered last.
type Fallback struct {
	delay time.Duration
}

// NewFallback creates the strategy. delay <= 0 uses the default reply
// delay.
func NewFallback(delay time.Duration) *Fallback {
	if delay <= 0 {
		delay = DefaultReplyDelay
	}
	return &Fallback{delay: delay}
}

func (f *Fallback) Name() string { return "fallback" }

func fallbackResponse(lower string) string {
	switch {
	case strings.Contains(lower, "fee"), strings.Contains(lower, "cost"), strings.Contains(lower, "tuition"):
		return feeHelp
	case strings.Contains(lower, "admission"), strings.Contains(lower, "apply"), strings.Contains(lower, "entrance"):
		return admissionHelp
	case strings.Contains(lower, "placement"), strings.Contains(lower, "job"), strings.Contains(lower, "company"):
		return placementHelp
	default:
		return generalHelp
	}
}

func (f *Fallback) Respond(ctx context.Context, q Query) (domain.Turn, bool, error) {
	if err := sleepCtx(ctx, f.delay); err != nil {
		return domain.Turn{}, false, err
	}
	return domain.Turn{
		Role:    domain.RoleBot,
		Type:    domain.TurnText,
		Content: fallbackResponse(q.Lower),
	}, true, nil
}
