package memory

import (
	"context"
	"encoding/json"
	"maps"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type memoryStore struct {
	mu         sync.RWMutex
	contexts   map[string]*model.ContextRecord
	histories  map[string][]*model.ChatTurn
	maxHistory int
	now        func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		contexts:   make(map[string]*model.ContextRecord),
		histories:  make(map[string][]*model.ChatTurn),
		maxHistory: DefaultMaxHistory,
		now:        time.Now,
	}
}

func copyTurn(t *model.ChatTurn) *model.ChatTurn {
	copied := *t
	return &copied
}

func (s *memoryStore) GetContext(ctx context.Context, userID string) (*model.ContextRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.contexts[userID]
	if !exists {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (s *memoryStore) MergeContext(ctx context.Context, userID string, values map[string]any) (*model.ContextRecord, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrMissingUserID, "failed to merge context")
	}

	normalized, err := normalizeValues(model.SanitizeContextValues(values))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to merge context", goerr.V(model.UserIDKey, userID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.contexts[userID]
	if !exists {
		rec = &model.ContextRecord{UserID: userID, Values: make(map[string]any)}
		s.contexts[userID] = rec
	}
	maps.Copy(rec.Values, normalized)
	rec.UpdatedAt = s.now().UTC()

	return rec.Clone(), nil
}

func (s *memoryStore) DeleteContext(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.contexts[userID]
	delete(s.contexts, userID)
	return exists, nil
}

func (s *memoryStore) AppendTurn(ctx context.Context, userID string, turn *model.ChatTurn) error {
	if userID == "" {
		return goerr.Wrap(model.ErrMissingUserID, "failed to append turn")
	}
	if err := turn.Validate(); err != nil {
		return goerr.Wrap(err, "rejected chat turn", goerr.V(model.UserIDKey, userID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.histories[userID], copyTurn(turn))
	if over := len(history) - s.maxHistory; over > 0 {
		history = append([]*model.ChatTurn(nil), history[over:]...)
	}
	s.histories[userID] = history
	return nil
}

func (s *memoryStore) ListTurns(ctx context.Context, userID string, limit int) ([]*model.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[userID]
	start := 0
	if limit > 0 && len(history) > limit {
		start = len(history) - limit
	}

	result := make([]*model.ChatTurn, 0, len(history)-start)
	for _, t := range history[start:] {
		result = append(result, copyTurn(t))
	}
	return result, nil
}

func (s *memoryStore) DeleteHistory(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, exists := s.histories[userID]
	delete(s.histories, userID)
	return exists && len(history) > 0, nil
}

// normalizeValues round-trips values through JSON so the in-process backend
// returns the same shapes as the persistent ones (numbers become float64)
func normalizeValues(values map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, goerr.Wrap(err, "context values are not JSON-serializable")
	}
	out := make(map[string]any, len(values))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to decode context values")
	}
	return out, nil
}
