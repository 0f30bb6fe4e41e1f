package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/types"
)

// CompletionCache stores raw completions by key.
type CompletionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type cachedProvider struct {
	next  interfaces.Provider
	cache CompletionCache
	ttl   time.Duration
}

// NewCachedProvider reuses a provider's last successful completion for an
// identical prompt within ttl. A nil cache or non-positive ttl disables it.
func NewCachedProvider(next interfaces.Provider, cache CompletionCache, ttl time.Duration) interfaces.Provider {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &cachedProvider{next: next, cache: cache, ttl: ttl}
}

func (c *cachedProvider) Name() string {
	return c.next.Name()
}

func (c *cachedProvider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	key := CacheKey(c.next.Name(), req)

	if text, ok, err := c.cache.Get(ctx, key); err != nil {
		logger.Warn(ctx, "Completion cache read failed", "provider", c.next.Name(), "error", err)
	} else if ok {
		logger.Debug(ctx, "Completion cache hit", "provider", c.next.Name())
		return text, nil
	}

	text, err := c.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if !cacheable(c.next.Name(), text) {
		logger.Debug(ctx, "Completion not cached, no usable opinion", "provider", c.next.Name())
		return text, nil
	}
	if err := c.cache.Set(ctx, key, text, c.ttl); err != nil {
		logger.Warn(ctx, "Completion cache write failed", "provider", c.next.Name(), "error", err)
	}
	return text, nil
}

// cacheable reports whether text parses as a trading or lending opinion.
// Other text is never stored.
func cacheable(provider, text string) bool {
	return ParseTradingOpinion(provider, text).Ok() || ParseLendingOpinion(provider, text).Ok()
}

// CacheKey hashes the provider name and the full request.
func CacheKey(provider string, req types.CompletionRequest) string {
	b, _ := json.Marshal(struct {
		Provider string                  `json:"provider"`
		Request  types.CompletionRequest `json:"request"`
	}{provider, req})
	sum := sha256.Sum256(b)
	return "llm:completion:" + hex.EncodeToString(sum[:])
}
