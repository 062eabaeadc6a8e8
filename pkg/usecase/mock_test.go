package usecase_test

import (
	"context"
	"sync"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// spyIndex is a SimilarityIndex returning canned fragments per collection and recording calls
type spyIndex struct {
	mu        sync.Mutex
	queries   []model.SimilarityQuery
	upserts   map[string][]*model.Document
	results   map[string][]*model.RetrievedFragment
	failures  map[string]error
	upsertErr error
}

func newSpyIndex() *spyIndex {
	return &spyIndex{
		upserts:  make(map[string][]*model.Document),
		results:  make(map[string][]*model.RetrievedFragment),
		failures: make(map[string]error),
	}
}

var _ interfaces.SimilarityIndex = &spyIndex{}

func (s *spyIndex) Query(ctx context.Context, q model.SimilarityQuery) ([]*model.RetrievedFragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, q)
	if err := s.failures[q.Collection]; err != nil {
		return nil, err
	}
	out := s.results[q.Collection]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *spyIndex) Upsert(ctx context.Context, collection string, doc *model.Document) (model.DocumentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertErr != nil {
		return "", s.upsertErr
	}
	s.upserts[collection] = append(s.upserts[collection], doc)
	return doc.ID, nil
}

func (s *spyIndex) DeleteDocuments(ctx context.Context, collection string, sel model.DeleteSelector) (int, error) {
	return 0, nil
}

func (s *spyIndex) DeleteCollection(ctx context.Context, collection string) error {
	return nil
}

func (s *spyIndex) queriesFor(collection string) []model.SimilarityQuery {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SimilarityQuery
	for _, q := range s.queries {
		if q.Collection == collection {
			out = append(out, q)
		}
	}
	return out
}

// mockCompleter records the prompts it receives
type mockCompleter struct {
	mu       sync.Mutex
	received [][]model.PromptMessage
	fn       func(ctx context.Context, messages []model.PromptMessage) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, messages []model.PromptMessage) (string, error) {
	m.mu.Lock()
	m.received = append(m.received, messages)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(ctx, messages)
	}
	return "model answer", nil
}

func (m *mockCompleter) last() []model.PromptMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return m.received[len(m.received)-1]
}

// failingStore wraps a MemoryStore and fails selected operations
type failingStore struct {
	interfaces.MemoryStore
	listErr   error
	appendErr error
	listCalls int
}

func (s *failingStore) ListTurns(ctx context.Context, userID string, limit int) ([]*model.ChatTurn, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListTurns(ctx, userID, limit)
}

func (s *failingStore) AppendTurn(ctx context.Context, userID string, turn *model.ChatTurn) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.AppendTurn(ctx, userID, turn)
}

// ctxStore wraps a MemoryStore and refuses writes on a cancelled context,
// the way network backends do
type ctxStore struct {
	interfaces.MemoryStore
}

func (s *ctxStore) AppendTurn(ctx context.Context, userID string, turn *model.ChatTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.AppendTurn(ctx, userID, turn)
}

func fragment(id, content string, dissimilarity float64, metadata map[string]any) *model.RetrievedFragment {
	return &model.RetrievedFragment{
		ID:            model.DocumentID(id),
		Content:       content,
		Metadata:      metadata,
		Dissimilarity: dissimilarity,
	}
}
