package claude

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"a2achat/internal/providers"
)

func TestGenerateParsesContent(t *testing.T) {
	var gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"certainly"}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.Generate(context.Background(), "claude-sonnet", "secret", "hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "certainly" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if gotKey != "secret" || gotVersion != apiVersion {
		t.Fatalf("unexpected headers key=%q version=%q", gotKey, gotVersion)
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), "claude-sonnet", "secret", "hi")
	var callErr *providers.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if callErr.Status != http.StatusBadRequest || callErr.Message != "model not found" {
		t.Fatalf("unexpected call error %+v", callErr)
	}
}

func TestGenerateMissingKey(t *testing.T) {
	c := New(Config{})
	_, err := c.Generate(context.Background(), "claude-sonnet", "", "hi")
	if !errors.Is(err, providers.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
