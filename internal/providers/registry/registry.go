// Package registry maps an enumerated provider kind onto a concrete client.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"a2achat/internal/providers"
	"a2achat/internal/providers/chatgpt"
	"a2achat/internal/providers/claude"
	"a2achat/internal/providers/gemini"
)

type Config struct {
	HTTPClient *http.Client

	// Base URL overrides, used by tests and self-hosted gateways.
	GeminiBaseURL  string
	ChatGPTBaseURL string
	ClaudeBaseURL  string
}

// Registry holds one client per supported backend and implements
// providers.Invoker.
type Registry struct {
	clients map[providers.Kind]providers.Provider
}

func New(cfg Config) *Registry {
	return &Registry{
		clients: map[providers.Kind]providers.Provider{
			providers.KindGemini:  gemini.New(gemini.Config{BaseURL: cfg.GeminiBaseURL, HTTPClient: cfg.HTTPClient}),
			providers.KindChatGPT: chatgpt.New(chatgpt.Config{BaseURL: cfg.ChatGPTBaseURL, HTTPClient: cfg.HTTPClient}),
			providers.KindClaude:  claude.New(claude.Config{BaseURL: cfg.ClaudeBaseURL, HTTPClient: cfg.HTTPClient}),
		},
	}
}

var _ providers.Invoker = (*Registry)(nil)

func (r *Registry) Invoke(ctx context.Context, req providers.Request) (providers.Response, error) {
	kind, err := Normalize(string(req.Provider))
	if err != nil {
		return providers.Response{}, err
	}
	client, ok := r.clients[kind]
	if !ok {
		return providers.Response{}, fmt.Errorf("%w: %q", providers.ErrUnsupported, req.Provider)
	}
	return client.Generate(ctx, req.Model, req.APIKey, req.Prompt)
}

// Normalize folds legacy aliases onto the enumerated kinds. Unknown values
// are a contract violation, never silently ignored.
func Normalize(raw string) (providers.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return providers.KindGemini, nil
	case "chatgpt", "openai", "gpt":
		return providers.KindChatGPT, nil
	case "claude", "anthropic":
		return providers.KindClaude, nil
	default:
		return "", fmt.Errorf("%w: %q", providers.ErrUnsupported, raw)
	}
}
