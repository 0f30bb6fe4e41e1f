package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"llm-defi-agent/internal/types"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model       string  `json:"model"`
			Temperature float32 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Model != "deepseek-chat" || body.MaxTokens != 250 || len(body.Messages) != 2 {
			t.Errorf("Unexpected request body %+v", body)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"  {\"action\":\"BUY\"}  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient("DeepSeek", "deepseek-chat", srv.URL, "key")
	out, err := c.Complete(context.Background(), types.CompletionRequest{System: "s", User: "u", Temperature: 0.2, MaxTokens: 250})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out != `{"action":"BUY"}` {
		t.Errorf("Expected trimmed content, got %q", out)
	}
	if c.Name() != "DeepSeek" {
		t.Errorf("Expected name DeepSeek, got %s", c.Name())
	}
}

func TestCompleteFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := NewClient("GPT", "gpt-4o", srv.URL, "").Complete(context.Background(), types.CompletionRequest{}); err == nil {
		t.Error("Expected missing key error")
	}
	if _, err := NewClient("GPT", "gpt-4o", srv.URL, "key").Complete(context.Background(), types.CompletionRequest{}); err == nil {
		t.Error("Expected no choices error")
	}
}
