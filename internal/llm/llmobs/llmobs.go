package llmobs

import (
	"context"
	"time"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/trace"
	"llm-defi-agent/internal/types"
)

// observableProvider wraps a Provider with observability (logging & tracing)
type observableProvider struct {
	provider interfaces.Provider
}

// Compile-time interface check
var _ interfaces.Provider = (*observableProvider)(nil)

// Wrap wraps a provider with observability middleware
func Wrap(provider interfaces.Provider) interfaces.Provider {
	return &observableProvider{
		provider: provider,
	}
}

func (op *observableProvider) Name() string {
	return op.provider.Name()
}

// Complete requests a completion with observability
func (op *observableProvider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	ctx, span := trace.StartProviderSpan(ctx, op.provider.Name())
	defer span.End()

	start := time.Now()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting completion",
		"provider", op.provider.Name(),
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
	)

	text, err := op.provider.Complete(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Completion failed", err,
			"provider", op.provider.Name(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Completion received",
		"provider", op.provider.Name(),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return text, nil
}
