// Package claude calls the Anthropic messages endpoint.
package claude

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

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4000
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
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, model, apiKey, prompt string) (providers.Response, error) {
	if strings.TrimSpace(apiKey) == "" {
		return providers.Response{}, fmt.Errorf("claude: %w", providers.ErrMissingAPIKey)
	}

	payload := map[string]any{
		"model":      model,
		"max_tokens": defaultMaxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.Response{}, fmt.Errorf("marshal messages payload: %w", err)
	}

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return providers.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindClaude, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindClaude, Message: "read response body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.Response{}, &providers.CallError{
			Provider: providers.KindClaude,
			Status:   resp.StatusCode,
			Message:  upstreamMessage(respBody),
		}
	}

	text, err := parseMessages(respBody)
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindClaude, Message: err.Error()}
	}
	return providers.Response{Text: html.UnescapeString(text)}, nil
}

func parseMessages(body []byte) (string, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode messages response: %w", err)
	}
	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return "", fmt.Errorf("missing content text in messages response")
	}
	return resp.Content[0].Text, nil
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
