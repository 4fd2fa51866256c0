// Package chatgpt calls the OpenAI chat completions endpoint.
package chatgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"a2achat/internal/providers"
)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, model, apiKey, prompt string) (providers.Response, error) {
	if strings.TrimSpace(apiKey) == "" {
		return providers.Response{}, fmt.Errorf("chatgpt: %w", providers.ErrMissingAPIKey)
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.Response{}, fmt.Errorf("marshal chat completion payload: %w", err)
	}

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return providers.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindChatGPT, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindChatGPT, Message: "read response body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.Response{}, &providers.CallError{
			Provider: providers.KindChatGPT,
			Status:   resp.StatusCode,
			Message:  upstreamMessage(respBody),
		}
	}

	text, err := parseChatCompletions(respBody)
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindChatGPT, Message: err.Error()}
	}
	return providers.Response{Text: html.UnescapeString(text)}, nil
}

func parseChatCompletions(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in chat completion response")
	}
	if strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("missing message content in chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func upstreamMessage(body []byte) string {
	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	return strings.TrimSpace(string(body))
}
