package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"a2achat/internal/chat"
	"a2achat/internal/providers"
	"a2achat/internal/storage"
)

type stubInvoker struct {
	resp  providers.Response
	err   error
	calls int
}

func (f *stubInvoker) Invoke(_ context.Context, _ providers.Request) (providers.Response, error) {
	f.calls++
	if f.err != nil {
		return providers.Response{}, f.err
	}
	return f.resp, nil
}

func newTestServer(t *testing.T, invoker providers.Invoker) (*http.ServeMux, *storage.Store) {
	t.Helper()
	dsn := "file:" + t.TempDir() + "/test.db"
	store, err := storage.Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	orchestrator := chat.NewOrchestrator(chat.Config{
		Store:   store,
		Invoker: invoker,
		Logger:  zerolog.Nop(),
	})
	srv := New(Config{
		Store:        store,
		Orchestrator: orchestrator,
		Logger:       zerolog.Nop(),
	})
	mux := http.NewServeMux()
	srv.Register(mux)
	return mux, store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, out
}

func createTestGroup(t *testing.T, mux *http.ServeMux, name string) int64 {
	t.Helper()
	code, body := doJSON(t, mux, http.MethodPost, "/api/groups", map[string]any{"name": name})
	if code != http.StatusOK {
		t.Fatalf("create group: status %d body %v", code, body)
	}
	return int64(body["group_id"].(float64))
}

func addTestParticipant(t *testing.T, mux *http.ServeMux, groupID int64, req map[string]any) int64 {
	t.Helper()
	code, body := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/participants", groupID), req)
	if code != http.StatusOK {
		t.Fatalf("add participant: status %d body %v", code, body)
	}
	return int64(body["participant_id"].(float64))
}

func TestGroupLifecycle(t *testing.T) {
	mux, _ := newTestServer(t, &stubInvoker{})

	gid := createTestGroup(t, mux, "Debate Club")

	code, body := doJSON(t, mux, http.MethodGet, "/api/groups", nil)
	if code != http.StatusOK {
		t.Fatalf("list groups: status %d", code)
	}
	groups := body["groups"].([]any)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %v", groups)
	}

	code, body = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/api/groups/%d/rules", gid), map[string]any{"rules": "Stay polite."})
	if code != http.StatusOK {
		t.Fatalf("update rules: status %d body %v", code, body)
	}

	code, body = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/groups/%d", gid), nil)
	if code != http.StatusOK {
		t.Fatalf("get group: status %d", code)
	}
	group := body["group"].(map[string]any)
	if group["rules"] != "Stay polite." {
		t.Fatalf("rules not persisted: %v", group)
	}

	code, _ = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/api/groups/%d", gid), nil)
	if code != http.StatusOK {
		t.Fatalf("delete group: status %d", code)
	}
	code, _ = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/groups/%d", gid), nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	mux, _ := newTestServer(t, &stubInvoker{})

	code, body := doJSON(t, mux, http.MethodPost, "/api/groups", map[string]any{"name": ""})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", code)
	}
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}

	// Unknown fields are rejected, not silently dropped.
	code, _ = doJSON(t, mux, http.MethodPost, "/api/groups", map[string]any{"name": "g", "bogus": 1})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", code)
	}
}

func TestParticipantValidation(t *testing.T) {
	mux, _ := newTestServer(t, &stubInvoker{})
	gid := createTestGroup(t, mux, "g")

	code, _ := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/participants", gid),
		map[string]any{"name": "x", "kind": "robot"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad kind, got %d", code)
	}

	code, _ = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/participants", gid),
		map[string]any{"name": "x", "kind": "ai"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for ai without provider, got %d", code)
	}

	code, _ = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/participants", gid),
		map[string]any{"name": "x", "kind": "ai", "provider": "llama-local"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported provider, got %d", code)
	}

	code, _ = doJSON(t, mux, http.MethodPost, "/api/groups/9999/participants",
		map[string]any{"name": "x", "kind": "human"})
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing group, got %d", code)
	}
}

func TestParticipantProviderAliasNormalized(t *testing.T) {
	mux, _ := newTestServer(t, &stubInvoker{})
	gid := createTestGroup(t, mux, "g")
	addTestParticipant(t, mux, gid, map[string]any{
		"name": "Bot", "kind": "ai", "provider": "google", "model": "gemini-pro",
	})

	code, body := doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/groups/%d/participants", gid), nil)
	if code != http.StatusOK {
		t.Fatalf("list participants: status %d", code)
	}
	participants := body["participants"].([]any)
	if len(participants) != 1 {
		t.Fatalf("expected one participant, got %v", participants)
	}
	p := participants[0].(map[string]any)
	if p["provider"] != "gemini" {
		t.Fatalf("expected alias folded to gemini, got %v", p["provider"])
	}
}

func TestPostAndListMessages(t *testing.T) {
	mux, _ := newTestServer(t, &stubInvoker{})
	gid := createTestGroup(t, mux, "g")
	pid := addTestParticipant(t, mux, gid, map[string]any{"name": "Alice", "kind": "human"})

	for _, content := range []string{"first", "second"} {
		code, body := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/messages", gid),
			map[string]any{"participant_id": pid, "content": content})
		if code != http.StatusOK {
			t.Fatalf("post message: status %d body %v", code, body)
		}
	}

	code, body := doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/groups/%d/messages", gid), nil)
	if code != http.StatusOK {
		t.Fatalf("list messages: status %d", code)
	}
	messages := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	first := messages[0].(map[string]any)
	second := messages[1].(map[string]any)
	if first["content"] != "first" || second["content"] != "second" {
		t.Fatalf("messages not chronological: %v", messages)
	}
	if first["speaker_name"] != "Alice" {
		t.Fatalf("missing speaker name: %v", first)
	}
}

func TestPostMessageWrongGroup(t *testing.T) {
	mux, _ := newTestServer(t, &stubInvoker{})
	gid1 := createTestGroup(t, mux, "a")
	gid2 := createTestGroup(t, mux, "b")
	pid := addTestParticipant(t, mux, gid1, map[string]any{"name": "Alice", "kind": "human"})

	code, _ := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/messages", gid2),
		map[string]any{"participant_id": pid, "content": "hi"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cross-group post, got %d", code)
	}
}

func TestSpeakSuccess(t *testing.T) {
	invoker := &stubInvoker{resp: providers.Response{Text: "What is virtue?"}}
	mux, _ := newTestServer(t, invoker)
	gid := createTestGroup(t, mux, "Debate Club")
	pid := addTestParticipant(t, mux, gid, map[string]any{
		"name": "Socrates", "kind": "ai", "provider": "gemini", "model": "gemini-pro",
	})

	code, body := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/speak", gid),
		map[string]any{"participant_id": pid, "instruction": "Ask a question", "api_key": "k"})
	if code != http.StatusOK {
		t.Fatalf("speak: status %d body %v", code, body)
	}
	if body["content"] != "What is virtue?" || body["speaker_name"] != "Socrates" {
		t.Fatalf("unexpected speak response %v", body)
	}
	if invoker.calls != 1 {
		t.Fatalf("expected one provider call, got %d", invoker.calls)
	}

	code, body = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/groups/%d/messages", gid), nil)
	if code != http.StatusOK {
		t.Fatalf("list messages: status %d", code)
	}
	messages := body["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected the spoken message persisted, got %d", len(messages))
	}
	m := messages[0].(map[string]any)
	if m["speaker_kind"] != "ai" || m["provider"] != "gemini" {
		t.Fatalf("unexpected message %v", m)
	}
}

func TestSpeakErrorMapping(t *testing.T) {
	invoker := &stubInvoker{err: &providers.CallError{Provider: providers.KindGemini, Status: 500, Message: "boom"}}
	mux, _ := newTestServer(t, invoker)
	gid := createTestGroup(t, mux, "g")
	humanID := addTestParticipant(t, mux, gid, map[string]any{"name": "Bob", "kind": "human"})
	aiID := addTestParticipant(t, mux, gid, map[string]any{
		"name": "Bot", "kind": "ai", "provider": "gemini",
	})

	// Unknown participant.
	code, _ := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/speak", gid),
		map[string]any{"participant_id": 9999, "api_key": "k"})
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown participant, got %d", code)
	}

	// Human participant cannot take an AI turn.
	code, _ = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/speak", gid),
		map[string]any{"participant_id": humanID, "api_key": "k"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for human participant, got %d", code)
	}

	// Missing api key.
	code, _ = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/speak", gid),
		map[string]any{"participant_id": aiID})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing api key, got %d", code)
	}

	// Upstream provider failure.
	code, body := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/speak", gid),
		map[string]any{"participant_id": aiID, "api_key": "k"})
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502 for provider failure, got %d body %v", code, body)
	}

	// No message may survive any of the failed turns.
	code, body = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/groups/%d/messages", gid), nil)
	if code != http.StatusOK {
		t.Fatalf("list messages: status %d", code)
	}
	if messages := body["messages"].([]any); len(messages) != 0 {
		t.Fatalf("failed turns must not persist messages, got %v", messages)
	}
}

func TestStatusCounts(t *testing.T) {
	mux, _ := newTestServer(t, &stubInvoker{})
	gid := createTestGroup(t, mux, "g")
	pid := addTestParticipant(t, mux, gid, map[string]any{"name": "Alice", "kind": "human"})
	if code, body := doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/groups/%d/messages", gid),
		map[string]any{"participant_id": pid, "content": "hi"}); code != http.StatusOK {
		t.Fatalf("post message: status %d body %v", code, body)
	}

	code, body := doJSON(t, mux, http.MethodGet, "/api/status", nil)
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	db := body["database"].(map[string]any)
	if db["groups_count"].(float64) != 1 || db["participants_count"].(float64) != 1 || db["messages_count"].(float64) != 1 {
		t.Fatalf("unexpected counts %v", db)
	}
}
