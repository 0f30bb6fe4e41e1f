package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/store"
)

func TestHTTPOptionsOverrideAdapterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := &store.Config{}
	cfg.HTTP.Timeout = 50 * time.Millisecond

	// Adapters put their own timeout first; the configured client must win.
	c := api.NewClient(append([]api.ClientOption{api.WithTimeout(time.Minute)}, httpOptions(cfg)...)...)
	if _, err := c.Do(api.NewRequest(http.MethodGet, srv.URL)); err == nil {
		t.Error("Expected the configured timeout to apply")
	}
}
