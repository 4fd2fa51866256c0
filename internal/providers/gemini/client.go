// Package gemini calls the Google Generative Language generateContent
// endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
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
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, model, apiKey, prompt string) (providers.Response, error) {
	if strings.TrimSpace(apiKey) == "" {
		return providers.Response{}, fmt.Errorf("gemini: %w", providers.ErrMissingAPIKey)
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.Response{}, fmt.Errorf("marshal generate payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), url.PathEscape(model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return providers.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindGemini, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindGemini, Message: "read response body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.Response{}, &providers.CallError{
			Provider: providers.KindGemini,
			Status:   resp.StatusCode,
			Message:  upstreamMessage(respBody),
		}
	}

	text, err := parseGenerateContent(respBody)
	if err != nil {
		return providers.Response{}, &providers.CallError{Provider: providers.KindGemini, Message: err.Error()}
	}
	return providers.Response{Text: html.UnescapeString(text)}, nil
}

func parseGenerateContent(body []byte) (string, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty candidates in generate response")
	}
	parts := make([]string, 0, len(resp.Candidates[0].Content.Parts))
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("missing text parts in generate response")
	}
	return strings.Join(parts, "\n"), nil
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
