package interfaces

import (
	"context"

	"llm-defi-agent/internal/types"
)

type Engine interface {
	RunDecisionCycle(ctx context.Context, params *types.CycleParams) (*types.CycleReport, error)
	Close() error
}
