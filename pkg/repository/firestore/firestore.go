package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// DefaultMaxHistory is the history cap used when WithMaxHistory is not given
const DefaultMaxHistory = 100

// Firestore implements both MemoryStore and SimilarityIndex on Cloud Firestore.
// Similarity queries use FindNearest with cosine distance.
type Firestore struct {
	client *firestore.Client
	store  *memoryStore
	index  *similarityIndex
}

var (
	_ interfaces.MemoryStore     = &memoryStore{}
	_ interfaces.SimilarityIndex = &similarityIndex{}
)

type Option func(*Firestore)

// WithCollectionPrefix namespaces every top-level collection
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.store.collectionPrefix = prefix
		f.index.collectionPrefix = prefix
	}
}

// WithMaxHistory sets the maximum number of turns kept per user
func WithMaxHistory(n int) Option {
	return func(f *Firestore) {
		if n > 0 {
			f.store.maxHistory = n
		}
	}
}

// WithEmbedder sets the embedder used to vectorize documents and queries.
// Without it the backend can serve as a MemoryStore only.
func WithEmbedder(embedder interfaces.Embedder) Option {
	return func(f *Firestore) {
		f.index.embedder = embedder
	}
}

// WithClock replaces the clock used to stamp context records
func WithClock(now func() time.Time) Option {
	return func(f *Firestore) {
		f.store.now = now
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client: client,
		store:  newMemoryStore(client),
		index:  newSimilarityIndex(client),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) MemoryStore() interfaces.MemoryStore {
	return f.store
}

func (f *Firestore) SimilarityIndex() interfaces.SimilarityIndex {
	return f.index
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
