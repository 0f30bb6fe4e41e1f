package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/types"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// Client calls the Anthropic messages API.
type Client struct {
	name   string
	model  string
	apiKey string
	http   *api.Client
}

// NewClient talks to the Anthropic messages API. An empty baseURL uses the public endpoint.
func NewClient(name, model, baseURL, apiKey string, opts ...api.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base := []api.ClientOption{
		api.WithBaseURL(strings.TrimRight(baseURL, "/")),
		api.WithHeader("x-api-key", apiKey),
		api.WithHeader("anthropic-version", anthropicVersion),
		api.WithTimeout(60 * time.Second),
	}
	return &Client{name: name, model: model, apiKey: apiKey, http: api.NewClient(append(base, opts...)...)}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%s: API key missing", c.name)
	}

	body := map[string]any{
		"model":  c.model,
		"system": req.System,
		"messages": []map[string]string{
			{"role": "user", "content": req.User},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	resp, err := c.http.POST(ctx, "/messages", body)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.name, err)
	}
	return extractText(resp.Body)
}

// extractText reads the first text block, falling back to the legacy
// completion field some proxies still return.
func extractText(body []byte) (string, error) {
	var r struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Completion string `json:"completion"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("failed to parse JSON response: %w", err)
	}
	for _, block := range r.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	if s := strings.TrimSpace(r.Completion); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("empty completion")
}
