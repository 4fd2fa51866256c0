package httpapi

import (
	"net/http"
	"time"

	"a2achat/internal/chat"
	"a2achat/internal/events"
	"a2achat/internal/storage"
)

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		s.failErr(w, err)
		return
	}
	out := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		item := map[string]any{
			"id":            g.ID,
			"name":          g.Name,
			"description":   g.Description,
			"created_at":    g.CreatedAt,
			"message_count": g.MessageCount,
		}
		if g.LastActivity != nil {
			item["last_activity"] = g.LastActivity
		}
		out = append(out, item)
	}
	s.ok(w, map[string]any{"groups": out})
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.store.CreateGroup(r.Context(), req.Name, req.Description)
	if err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, map[string]any{"group_id": id})
}

func (s *Server) getGroupInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	info, err := s.store.GetGroupInfo(r.Context(), id)
	if err != nil {
		s.failErr(w, err)
		return
	}
	group := map[string]any{
		"id":                info.ID,
		"name":              info.Name,
		"description":       info.Description,
		"rules":             info.Rules,
		"created_at":        info.CreatedAt,
		"participant_count": info.ParticipantCount,
		"message_count":     info.MessageCount,
	}
	if info.LastMessage != nil {
		group["last_message"] = messageJSON(*info.LastMessage)
	}
	s.ok(w, map[string]any{"group": group})
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	if err := s.store.SoftDeleteGroup(r.Context(), id); err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) updateRules(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	var req updateRulesRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.store.UpdateGroupRules(r.Context(), id, req.Rules); err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	participants, err := s.store.ListParticipants(r.Context(), id)
	if err != nil {
		s.failErr(w, err)
		return
	}
	out := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		out = append(out, participantJSON(p))
	}
	s.ok(w, map[string]any{"participants": out})
}

func (s *Server) addParticipant(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	var req participantRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	// Reject participants for missing or deleted groups up front.
	if _, err := s.store.GetGroup(r.Context(), groupID); err != nil {
		s.failErr(w, err)
		return
	}
	id, err := s.store.AddParticipant(r.Context(), storage.Participant{
		GroupID:  groupID,
		Name:     req.Name,
		Kind:     req.Kind,
		Provider: req.Provider,
		Model:    req.Model,
		Persona:  req.Persona,
	})
	if err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, map[string]any{"participant_id": id})
}

func (s *Server) updateParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid participant id")
		return
	}
	var req participantRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpdateParticipant(r.Context(), storage.Participant{
		ID:       id,
		Name:     req.Name,
		Kind:     req.Kind,
		Provider: req.Provider,
		Model:    req.Model,
		Persona:  req.Persona,
	}); err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) deleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid participant id")
		return
	}
	if err := s.store.SoftDeleteParticipant(r.Context(), id); err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	limit := queryInt64(r, "limit", 50)
	messages, err := s.store.RecentMessages(r.Context(), id, limit)
	if err != nil {
		s.failErr(w, err)
		return
	}
	// Newest-first in storage, chronological for the client.
	out := make([]map[string]any, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		out = append(out, messageJSON(messages[i]))
	}
	s.ok(w, map[string]any{"messages": out})
}

// postMessage is the direct write path for human messages. AI messages are
// only ever inserted by the orchestrator.
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	var req postMessageRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.store.GetParticipant(r.Context(), req.ParticipantID)
	if err != nil {
		s.failErr(w, err)
		return
	}
	if p.GroupID != groupID {
		s.fail(w, http.StatusBadRequest, "participant does not belong to this group")
		return
	}

	id, err := s.store.InsertMessage(r.Context(), storage.NewMessage{
		GroupID:        groupID,
		ParticipantID:  req.ParticipantID,
		Content:        req.Content,
		ResponseTimeMs: req.ResponseTimeMs,
		TokensUsed:     req.TokensUsed,
	})
	if err != nil {
		s.failErr(w, err)
		return
	}
	s.publish(r, events.MessageCreated{
		GroupID:       groupID,
		MessageID:     id,
		ParticipantID: p.ID,
		SpeakerName:   p.Name,
		SpeakerKind:   p.Kind,
	})
	s.ok(w, map[string]any{"message_id": id})
}

func (s *Server) speak(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid group id")
		return
	}
	var req speakRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.orchestrator.TakeTurn(r.Context(), chat.TurnRequest{
		GroupID:       groupID,
		ParticipantID: req.ParticipantID,
		Instruction:   req.Instruction,
		APIKey:        req.APIKey,
	})
	if err != nil {
		s.failErr(w, err)
		return
	}

	s.publish(r, events.MessageCreated{
		GroupID:       groupID,
		MessageID:     result.MessageID,
		ParticipantID: req.ParticipantID,
		SpeakerName:   result.SpeakerName,
		SpeakerKind:   storage.KindAI,
	})
	s.ok(w, map[string]any{
		"message_id":       result.MessageID,
		"content":          result.Content,
		"response_time_ms": result.ResponseTimeMs,
		"speaker_name":     result.SpeakerName,
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, map[string]any{
		"database": map[string]any{
			"groups_count":       st.GroupCount,
			"participants_count": st.ParticipantCount,
			"messages_count":     st.MessageCount,
		},
	})
}

func (s *Server) publish(r *http.Request, ev events.MessageCreated) {
	ev.CreatedAt = time.Now().UTC()
	if err := s.events.Publish(r.Context(), ev); err != nil {
		s.logger.Warn().Err(err).Int64("message_id", ev.MessageID).Msg("publish message event")
	}
}

func participantJSON(p storage.Participant) map[string]any {
	out := map[string]any{
		"id":            p.ID,
		"group_id":      p.GroupID,
		"name":          p.Name,
		"kind":          p.Kind,
		"display_order": p.DisplayOrder,
	}
	if p.Kind == storage.KindAI {
		out["provider"] = p.Provider
		out["model"] = p.Model
		out["persona"] = p.Persona
	}
	return out
}

func messageJSON(m storage.MessageView) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"content":      m.Content,
		"message_type": m.Kind,
		"timestamp":    m.Timestamp,
		"speaker_name": m.SpeakerName,
		"speaker_kind": m.SpeakerKind,
		"provider":     m.Provider,
	}
}
