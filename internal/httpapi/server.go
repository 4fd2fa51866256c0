// Package httpapi is the caller-facing boundary: it decodes and validates
// requests, invokes the store or the turn orchestrator, and maps typed errors
// onto HTTP status codes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"a2achat/internal/chat"
	"a2achat/internal/events"
	"a2achat/internal/providers"
	"a2achat/internal/storage"
)

type Server struct {
	store        *storage.Store
	orchestrator *chat.Orchestrator
	events       *events.Publisher
	logger       zerolog.Logger
}

type Config struct {
	Store        *storage.Store
	Orchestrator *chat.Orchestrator
	Events       *events.Publisher
	Logger       zerolog.Logger
}

func New(cfg Config) *Server {
	return &Server{
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		events:       cfg.Events,
		logger:       cfg.Logger,
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/groups", s.listGroups)
	mux.HandleFunc("POST /api/groups", s.createGroup)
	mux.HandleFunc("GET /api/groups/{id}", s.getGroupInfo)
	mux.HandleFunc("DELETE /api/groups/{id}", s.deleteGroup)
	mux.HandleFunc("PUT /api/groups/{id}/rules", s.updateRules)
	mux.HandleFunc("GET /api/groups/{id}/participants", s.listParticipants)
	mux.HandleFunc("POST /api/groups/{id}/participants", s.addParticipant)
	mux.HandleFunc("PUT /api/participants/{id}", s.updateParticipant)
	mux.HandleFunc("DELETE /api/participants/{id}", s.deleteParticipant)
	mux.HandleFunc("GET /api/groups/{id}/messages", s.listMessages)
	mux.HandleFunc("POST /api/groups/{id}/messages", s.postMessage)
	mux.HandleFunc("POST /api/groups/{id}/speak", s.speak)
	mux.HandleFunc("GET /api/status", s.status)
}

func (s *Server) respond(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) ok(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	s.respond(w, http.StatusOK, body)
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]any{"success": false, "error": msg})
}

// failErr maps the error taxonomy onto status codes. The error kind itself
// stays visible to the client in the message.
func (s *Server) failErr(w http.ResponseWriter, err error) {
	var callErr *providers.CallError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, chat.ErrParticipantNotFound):
		s.fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrNotAIParticipant),
		errors.Is(err, providers.ErrMissingAPIKey),
		errors.Is(err, providers.ErrUnsupported):
		s.fail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &callErr):
		s.fail(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		s.fail(w, http.StatusInternalServerError, err.Error())
	}
}

func decode[T any](r *http.Request, dst *T) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func queryInt64(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
