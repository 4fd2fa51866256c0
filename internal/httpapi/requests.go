package httpapi

import (
	"errors"
	"fmt"

	"a2achat/internal/providers/registry"
	"a2achat/internal/storage"
)

// Request bodies are explicit structs validated once here, before anything
// reaches the core. Optional fields document their defaults.

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"` // default ""
}

func (r *createGroupRequest) validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type updateRulesRequest struct {
	Rules string `json:"rules"` // empty clears the rules
}

type participantRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Provider string `json:"provider"` // required when kind is "ai"
	Model    string `json:"model"`    // default ""
	Persona  string `json:"persona"`  // default ""
}

func (r *participantRequest) validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	switch r.Kind {
	case storage.KindHuman, storage.KindAI:
	default:
		return fmt.Errorf("kind must be %q or %q", storage.KindHuman, storage.KindAI)
	}
	if r.Kind == storage.KindAI {
		if r.Provider == "" {
			return errors.New("ai participants require a provider")
		}
		kind, err := registry.Normalize(r.Provider)
		if err != nil {
			return err
		}
		r.Provider = string(kind)
	} else {
		// Humans never carry provider configuration.
		r.Provider = ""
		r.Model = ""
	}
	return nil
}

type postMessageRequest struct {
	ParticipantID  int64  `json:"participant_id"`
	Content        string `json:"content"`
	ResponseTimeMs *int64 `json:"response_time_ms"` // default null
	TokensUsed     *int64 `json:"tokens_used"`      // default null
}

func (r *postMessageRequest) validate() error {
	if r.ParticipantID <= 0 {
		return errors.New("participant_id is required")
	}
	if r.Content == "" {
		return errors.New("content is required")
	}
	return nil
}

type speakRequest struct {
	ParticipantID int64  `json:"participant_id"`
	Instruction   string `json:"instruction"` // default "" (no ad-hoc instruction)
	APIKey        string `json:"api_key"`
}

func (r *speakRequest) validate() error {
	if r.ParticipantID <= 0 {
		return errors.New("participant_id is required")
	}
	return nil
}
