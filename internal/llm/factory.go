package llm

import (
	"time"

	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/llm/claude"
	"llm-defi-agent/internal/llm/llmobs"
	"llm-defi-agent/internal/llm/noop"
	"llm-defi-agent/internal/llm/openai"
	"llm-defi-agent/internal/store"
)

// New builds the provider described by pc, cached and wrapped with observability.
func New(pc store.ProviderConfig, cache CompletionCache, ttl time.Duration, opts ...api.ClientOption) interfaces.Provider {
	var p interfaces.Provider
	switch pc.Kind {
	case "claude":
		p = claude.NewClient(pc.Name, pc.Model, pc.BaseURL, store.Secret(pc.APIKeyEnv), opts...)
	case "noop":
		p = noop.New(pc.Name)
	default:
		p = openai.NewClient(pc.Name, pc.Model, pc.BaseURL, store.Secret(pc.APIKeyEnv), opts...)
	}
	return llmobs.Wrap(NewCachedProvider(p, cache, ttl))
}

// NewAll builds one provider per configured entry, in config order.
func NewAll(cfg *store.Config, cache CompletionCache, opts ...api.ClientOption) []interfaces.Provider {
	out := make([]interfaces.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		out = append(out, New(pc, cache, cfg.Consensus.CacheTTL, opts...))
	}
	return out
}
