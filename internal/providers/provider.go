// Package providers defines the uniform contract over external AI text
// generation backends. Each backend lives in its own subpackage; the registry
// package maps an enumerated provider kind onto a concrete client.
package providers

import "context"

// Kind enumerates the supported backends. The registry also accepts legacy
// aliases (e.g. "chatGPT") and normalizes them to one of these.
type Kind string

const (
	KindGemini  Kind = "gemini"
	KindChatGPT Kind = "chatgpt"
	KindClaude  Kind = "claude"
)

type Request struct {
	Provider Kind
	Model    string
	APIKey   string
	Prompt   string
}

type Response struct {
	// Text is always HTML-entity decoded plain text.
	Text string
}

// Provider performs exactly one generation call. Clients never retry; retry
// policy belongs to the caller.
type Provider interface {
	Generate(ctx context.Context, model, apiKey, prompt string) (Response, error)
}

// Invoker dispatches a request to the backend named by its Kind.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}
