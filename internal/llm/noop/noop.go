package noop

import (
	"context"
	"errors"

	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/types"
)

var ErrDisabled = errors.New("provider disabled")

// Provider stands in for a configured but disabled model. Every call fails,
// so consensus treats it as a failed opinion.
type Provider struct {
	name string
}

// New returns a disabled provider reporting under name.
func New(name string) *Provider {
	return &Provider{name: name}
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Complete(ctx context.Context, _ types.CompletionRequest) (string, error) {
	logger.Debug(ctx, "Noop provider called - always fails", "provider", p.name)
	return "", ErrDisabled
}
