package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/types"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Client talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, DeepSeek and similar through BaseURL).
type Client struct {
	name   string
	model  string
	apiKey string
	http   *api.Client
}

// NewClient targets baseURL, or the OpenAI API when empty.
func NewClient(name, model, baseURL, apiKey string, opts ...api.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base := []api.ClientOption{
		api.WithBaseURL(strings.TrimRight(baseURL, "/")),
		api.WithHeader("Authorization", "Bearer "+apiKey),
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
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}
	resp, err := c.http.POST(ctx, "/chat/completions", body)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.name, err)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := resp.ParseJSON(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
