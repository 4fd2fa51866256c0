// Package chat holds the multi-agent turn core: assembling an AI
// participant's prompt from persisted context and orchestrating a single
// speaking turn against a provider backend.
package chat

import (
	"context"
	"errors"

	"a2achat/internal/storage"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotAIParticipant    = errors.New("participant is not an ai participant")
)

// Store is the persistence capability the core needs, satisfied by
// *storage.Store. It is injected; there is no ambient connection.
type Store interface {
	GetParticipant(ctx context.Context, participantID int64) (storage.Participant, error)
	GetGroupRules(ctx context.Context, groupID int64) (string, error)
	GetConversationSettings(ctx context.Context, groupID int64) (storage.ConversationSettings, error)
	RecentMessages(ctx context.Context, groupID, limit int64) ([]storage.MessageView, error)
	InsertMessage(ctx context.Context, m storage.NewMessage) (int64, error)
}
