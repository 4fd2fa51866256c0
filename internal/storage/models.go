package storage

import "time"

const (
	KindHuman = "human"
	KindAI    = "ai"
)

type Group struct {
	ID          int64
	Name        string
	Description string
	Rules       string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Participant struct {
	ID           int64
	GroupID      int64
	Name         string
	Kind         string
	Provider     string
	Model        string
	Persona      string
	DisplayOrder int64
	Active       bool
	CreatedAt    time.Time
}

type Message struct {
	ID              int64
	GroupID         int64
	ParticipantID   int64
	Content         string
	Kind            string
	Timestamp       time.Time
	ResponseTimeMs  *int64
	TokensUsed      *int64
	Edited          bool
	ParentMessageID *int64
}

// NewMessage is the insert payload; Kind defaults to "normal".
type NewMessage struct {
	GroupID         int64
	ParticipantID   int64
	Content         string
	Kind            string
	ResponseTimeMs  *int64
	TokensUsed      *int64
	ParentMessageID *int64
}

// MessageView is a history row joined with its speaker, as consumed by the
// prompt builder and the messages API.
type MessageView struct {
	ID          int64
	Content     string
	Kind        string
	Timestamp   time.Time
	SpeakerName string
	SpeakerKind string
	Provider    string
}

type ConversationSettings struct {
	GroupID            int64
	MaxMessages        int64
	ContextLength      int64
	TurnTimeoutSeconds int64
	AutoSave           bool
}

// DefaultSettings is used when a group has no settings row.
func DefaultSettings(groupID int64) ConversationSettings {
	return ConversationSettings{
		GroupID:            groupID,
		MaxMessages:        100,
		ContextLength:      10,
		TurnTimeoutSeconds: 30,
		AutoSave:           true,
	}
}

type GroupSummary struct {
	ID           int64
	Name         string
	Description  string
	CreatedAt    time.Time
	MessageCount int64
	LastActivity *time.Time
}

type GroupInfo struct {
	Group
	ParticipantCount int64
	MessageCount     int64
	LastMessage      *MessageView
}

type Stats struct {
	GroupCount       int64
	ParticipantCount int64
	MessageCount     int64
}
