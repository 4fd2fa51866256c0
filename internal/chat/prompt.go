package chat

import (
	"context"
	"fmt"
	"strings"

	"a2achat/internal/storage"
)

const defaultContextLength = 10

// PromptBuilder renders a single prompt string for one AI participant from
// group rules, persona, bounded recent history, and an optional ad-hoc
// instruction. It only reads; it never writes.
type PromptBuilder struct {
	store Store
}

func NewPromptBuilder(store Store) *PromptBuilder {
	return &PromptBuilder{store: store}
}

// Build assembles the prompt in fixed priority order: group rules first,
// persona second, history third, instruction fourth, and a closing
// call-to-respond line naming the participant.
func (b *PromptBuilder) Build(ctx context.Context, groupID int64, p storage.Participant, instruction string) (string, error) {
	rules, err := b.store.GetGroupRules(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("load group rules: %w", err)
	}

	settings, err := b.store.GetConversationSettings(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("load conversation settings: %w", err)
	}
	window := settings.ContextLength
	if window <= 0 {
		window = defaultContextLength
	}

	// The store returns newest-first; the prompt wants chronological order.
	history, err := b.store.RecentMessages(ctx, groupID, window)
	if err != nil {
		return "", fmt.Errorf("load recent messages: %w", err)
	}

	var sb strings.Builder
	if strings.TrimSpace(rules) != "" {
		sb.WriteString("Absolute rules for this group:\n")
		sb.WriteString(rules)
		sb.WriteString("\n\n")
	}
	if strings.TrimSpace(p.Persona) != "" {
		sb.WriteString("Your role: ")
		sb.WriteString(p.Persona)
		sb.WriteString("\n\n")
	}
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for i := len(history) - 1; i >= 0; i-- {
			sb.WriteString(history[i].SpeakerName)
			sb.WriteString(": ")
			sb.WriteString(history[i].Content)
			sb.WriteString("\n")
		}
	}
	if strings.TrimSpace(instruction) != "" {
		sb.WriteString("\nInstruction: ")
		sb.WriteString(instruction)
	}
	sb.WriteString("\n\nRespond as ")
	sb.WriteString(p.Name)
	sb.WriteString(":")

	return sb.String(), nil
}
