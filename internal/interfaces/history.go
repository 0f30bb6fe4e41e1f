package interfaces

import (
	"context"

	"llm-defi-agent/internal/types"
)

// HistoryStore is an append-only decision log; each record may be amended once.
type HistoryStore interface {
	Append(ctx context.Context, rec *types.DecisionRecord) (string, error)
	Amend(ctx context.Context, id string, patch types.ExecutionPatch) error
	Get(ctx context.Context, id string) (*types.DecisionRecord, error)
	Query(ctx context.Context, filter types.HistoryFilter) ([]types.DecisionRecord, error)
}

type DecisionPublisher interface {
	PublishDecision(ctx context.Context, rec *types.DecisionRecord) error
}
