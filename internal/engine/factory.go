package engine

import (
	"llm-defi-agent/internal/engine/engineobs"
	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/store"
)

// New builds the decision engine from its collaborators, wrapped with tracing and logging.
func New(cfg *store.Config, d Deps) interfaces.Engine {
	return engineobs.Wrap(newEngine(cfg, d))
}
