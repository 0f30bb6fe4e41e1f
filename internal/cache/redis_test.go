package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestWrapKey(t *testing.T) {
	c := newRedisCache(nil, "agent")
	if got := c.wrapKey("llm:completion:abc"); got != "agent:llm:completion:abc" {
		t.Errorf("Expected prefixed key, got %s", got)
	}
	if got := c.wrapKey("agent:x"); got != "agent:x" {
		t.Errorf("Expected key unchanged, got %s", got)
	}
	if got := newRedisCache(nil, "").wrapKey("x"); got != "x" {
		t.Errorf("Expected bare key without prefix, got %s", got)
	}
}

func TestUnreachableServerIsAnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	c := newRedisCache(client, "agent")
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "k")
	if err == nil || ok {
		t.Errorf("Expected connection error, got ok=%v err=%v", ok, err)
	}
}
