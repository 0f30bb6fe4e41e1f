package interfaces

import (
	"context"

	"llm-defi-agent/internal/types"
)

// Provider is one independent AI model that answers a prompt with raw text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req types.CompletionRequest) (string, error)
}
