package memory

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// DefaultMaxHistory is the history cap used when WithMaxHistory is not given
const DefaultMaxHistory = 100

// Memory is an in-process backend implementing both MemoryStore and SimilarityIndex.
// It is used for development and as the reference backend in tests.
type Memory struct {
	store *memoryStore
	index *similarityIndex
}

var (
	_ interfaces.MemoryStore     = &memoryStore{}
	_ interfaces.SimilarityIndex = &similarityIndex{}
)

type Option func(*Memory)

// WithMaxHistory sets the maximum number of turns kept per user
func WithMaxHistory(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.store.maxHistory = n
		}
	}
}

// WithClock replaces the clock used to stamp context records
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.store.now = now
	}
}

// New creates an in-process backend. embedder is used by the similarity index
// to vectorize documents and queries.
func New(embedder interfaces.Embedder, opts ...Option) *Memory {
	m := &Memory{
		store: newMemoryStore(),
		index: newSimilarityIndex(embedder),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) MemoryStore() interfaces.MemoryStore {
	return m.store
}

func (m *Memory) SimilarityIndex() interfaces.SimilarityIndex {
	return m.index
}
