package chat

import (
	"context"
	"strings"
	"testing"

	"a2achat/internal/storage"
)

type fakeStore struct {
	participants map[int64]storage.Participant
	rules        map[int64]string
	settings     map[int64]storage.ConversationSettings
	history      []storage.MessageView // newest-first, as the real store returns
	inserted     []storage.NewMessage
	insertErr    error
	lastLimit    int64
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		participants: map[int64]storage.Participant{},
		rules:        map[int64]string{},
		settings:     map[int64]storage.ConversationSettings{},
		nextID:       100,
	}
}

func (f *fakeStore) GetParticipant(_ context.Context, id int64) (storage.Participant, error) {
	p, ok := f.participants[id]
	if !ok {
		return storage.Participant{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetGroupRules(_ context.Context, groupID int64) (string, error) {
	return f.rules[groupID], nil
}

func (f *fakeStore) GetConversationSettings(_ context.Context, groupID int64) (storage.ConversationSettings, error) {
	if s, ok := f.settings[groupID]; ok {
		return s, nil
	}
	return storage.DefaultSettings(groupID), nil
}

func (f *fakeStore) RecentMessages(_ context.Context, _ int64, limit int64) ([]storage.MessageView, error) {
	f.lastLimit = limit
	if int64(len(f.history)) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, m storage.NewMessage) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, m)
	f.nextID++
	return f.nextID, nil
}

func TestBuildPromptOrdering(t *testing.T) {
	store := newFakeStore()
	store.rules[1] = "Stay polite."
	store.history = []storage.MessageView{
		{SpeakerName: "Bob", Content: "second"},
		{SpeakerName: "Alice", Content: "first"},
	}

	b := NewPromptBuilder(store)
	prompt, err := b.Build(context.Background(), 1, storage.Participant{
		Name:    "Socrates",
		Kind:    storage.KindAI,
		Persona: "a Greek philosopher",
	}, "Ask a question")
	if err != nil {
		t.Fatalf("build prompt: %v", err)
	}

	rulesIdx := strings.Index(prompt, "Stay polite.")
	personaIdx := strings.Index(prompt, "a Greek philosopher")
	historyIdx := strings.Index(prompt, "Alice: first")
	instructionIdx := strings.Index(prompt, "Instruction: Ask a question")
	if rulesIdx < 0 || personaIdx < 0 || historyIdx < 0 || instructionIdx < 0 {
		t.Fatalf("missing block in prompt:\n%s", prompt)
	}
	if !(rulesIdx < personaIdx && personaIdx < historyIdx && historyIdx < instructionIdx) {
		t.Fatalf("blocks out of order (rules=%d persona=%d history=%d instruction=%d):\n%s",
			rulesIdx, personaIdx, historyIdx, instructionIdx, prompt)
	}
	if !strings.HasSuffix(prompt, "Respond as Socrates:") {
		t.Fatalf("prompt does not end with call-to-respond: %q", prompt)
	}
}

func TestBuildPromptHistoryChronological(t *testing.T) {
	store := newFakeStore()
	store.history = []storage.MessageView{
		{SpeakerName: "Bob", Content: "newest"},
		{SpeakerName: "Alice", Content: "oldest"},
	}

	prompt, err := NewPromptBuilder(store).Build(context.Background(), 1, storage.Participant{Name: "AI"}, "")
	if err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	oldest := strings.Index(prompt, "Alice: oldest")
	newest := strings.Index(prompt, "Bob: newest")
	if oldest < 0 || newest < 0 || oldest > newest {
		t.Fatalf("history not chronological (oldest=%d newest=%d):\n%s", oldest, newest, prompt)
	}
}

func TestBuildPromptEmptyHistoryOmitsBlock(t *testing.T) {
	store := newFakeStore()
	store.rules[1] = "Stay polite."

	prompt, err := NewPromptBuilder(store).Build(context.Background(), 1, storage.Participant{Name: "Socrates"}, "")
	if err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	if strings.Contains(prompt, "Conversation so far:") {
		t.Fatalf("empty history should omit the history block:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Respond as Socrates:") {
		t.Fatalf("prompt does not end with call-to-respond: %q", prompt)
	}
}

func TestBuildPromptRespectsContextLength(t *testing.T) {
	store := newFakeStore()
	store.settings[1] = storage.ConversationSettings{GroupID: 1, ContextLength: 3}

	if _, err := NewPromptBuilder(store).Build(context.Background(), 1, storage.Participant{Name: "AI"}, ""); err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	if store.lastLimit != 3 {
		t.Fatalf("expected window of 3 messages, requested %d", store.lastLimit)
	}
}

func TestBuildPromptDefaultContextLength(t *testing.T) {
	store := newFakeStore()
	store.settings[1] = storage.ConversationSettings{GroupID: 1, ContextLength: 0}

	if _, err := NewPromptBuilder(store).Build(context.Background(), 1, storage.Participant{Name: "AI"}, ""); err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	if store.lastLimit != defaultContextLength {
		t.Fatalf("expected default window of %d messages, requested %d", defaultContextLength, store.lastLimit)
	}
}
