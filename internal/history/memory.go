package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/types"
)

// MemoryStore keeps records in process. Records are deep-copied on the way
// in and out so callers cannot mutate stored history.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*types.DecisionRecord
	order   []string
}

var _ interfaces.HistoryStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-process store, used in DRY_RUN and tests.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*types.DecisionRecord{}}
}

func (s *MemoryStore) Append(ctx context.Context, rec *types.DecisionRecord) (string, error) {
	cp, err := clone(rec)
	if err != nil {
		return "", err
	}
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[cp.ID]; ok {
		return "", fmt.Errorf("decision record %s already exists", cp.ID)
	}
	s.records[cp.ID] = cp
	s.order = append(s.order, cp.ID)
	return cp.ID, nil
}

func (s *MemoryStore) Amend(ctx context.Context, id string, patch types.ExecutionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrRecordNotFound, id)
	}
	if rec.ExecutedAt != nil {
		return fmt.Errorf("%w: %s", types.ErrAlreadyAmended, id)
	}
	executedAt := patch.ExecutedAt.UTC()
	rec.Executions = append([]types.ExecutionResult(nil), patch.Results...)
	rec.ExecutedAt = &executedAt
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*types.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRecordNotFound, id)
	}
	return clone(rec)
}

// Query returns matching records newest first.
func (s *MemoryStore) Query(ctx context.Context, f types.HistoryFilter) ([]types.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []types.DecisionRecord{}
	for _, id := range s.order {
		rec := s.records[id]
		if f.Pair != "" && !strings.EqualFold(rec.Pair, f.Pair) {
			continue
		}
		if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
			continue
		}
		cp, err := clone(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func clone(rec *types.DecisionRecord) (*types.DecisionRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil decision record")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode decision record: %w", err)
	}
	var cp types.DecisionRecord
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("decode decision record: %w", err)
	}
	return &cp, nil
}
