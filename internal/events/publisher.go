// Package events publishes message-created notifications to a redis stream
// so UI consumers can follow a group without polling the store. Publishing is
// best-effort: a failure is logged by the caller, never surfaced to the user.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type MessageCreated struct {
	GroupID       int64     `json:"group_id"`
	MessageID     int64     `json:"message_id"`
	ParticipantID int64     `json:"participant_id"`
	SpeakerName   string    `json:"speaker_name"`
	SpeakerKind   string    `json:"speaker_kind"`
	CreatedAt     time.Time `json:"created_at"`
}

type Publisher struct {
	redis  *redis.Client
	stream string
}

func NewPublisher(rdb *redis.Client, stream string) *Publisher {
	return &Publisher{redis: rdb, stream: stream}
}

// Publish appends one event to the stream. A nil publisher is a no-op so
// deployments without redis need no branching at call sites.
func (p *Publisher) Publish(ctx context.Context, ev MessageCreated) error {
	if p == nil || p.redis == nil {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"payload": payload},
	}).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
