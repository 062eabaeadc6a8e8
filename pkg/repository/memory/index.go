package memory

import (
	"context"
	"maps"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type indexEntry struct {
	doc       *model.Document
	embedding []float32
}

type similarityIndex struct {
	mu          sync.RWMutex
	embedder    interfaces.Embedder
	collections map[string]map[model.DocumentID]*indexEntry
}

func newSimilarityIndex(embedder interfaces.Embedder) *similarityIndex {
	return &similarityIndex{
		embedder:    embedder,
		collections: make(map[string]map[model.DocumentID]*indexEntry),
	}
}

func copyDocument(d *model.Document) *model.Document {
	copied := *d
	copied.Metadata = make(map[string]any, len(d.Metadata))
	maps.Copy(copied.Metadata, d.Metadata)
	return &copied
}

func (x *similarityIndex) embed(ctx context.Context, text string) ([]float32, error) {
	if x.embedder == nil {
		return nil, goerr.New("embedder is not configured")
	}
	vectors, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text")
	}
	if len(vectors) != 1 {
		return nil, goerr.New("unexpected number of embeddings", goerr.V("count", len(vectors)))
	}
	return vectors[0], nil
}

func (x *similarityIndex) Query(ctx context.Context, q model.SimilarityQuery) ([]*model.RetrievedFragment, error) {
	if q.Limit <= 0 {
		return []*model.RetrievedFragment{}, nil
	}

	x.mu.RLock()
	_, exists := x.collections[q.Collection]
	x.mu.RUnlock()
	if !exists {
		return []*model.RetrievedFragment{}, nil
	}

	vector, err := x.embed(ctx, q.Text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query similarity index", goerr.V(model.CollectionKey, q.Collection))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	candidates := make([]*model.RetrievedFragment, 0)
	for _, e := range x.collections[q.Collection] {
		if !model.MatchMetadata(e.doc.Metadata, q.Where) {
			continue
		}
		doc := copyDocument(e.doc)
		candidates = append(candidates, &model.RetrievedFragment{
			ID:            doc.ID,
			Content:       doc.Content,
			Metadata:      doc.Metadata,
			Dissimilarity: 1 - cosineSimilarity(vector, e.embedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Dissimilarity != candidates[j].Dissimilarity {
			return candidates[i].Dissimilarity < candidates[j].Dissimilarity
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}
	return candidates, nil
}

func (x *similarityIndex) Upsert(ctx context.Context, collection string, doc *model.Document) (model.DocumentID, error) {
	if collection == "" {
		return "", goerr.Wrap(model.ErrMissingCollection, "failed to upsert document")
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}

	vector, err := x.embed(ctx, doc.Content)
	if err != nil {
		return "", goerr.Wrap(err, "failed to upsert document", goerr.V(model.CollectionKey, collection))
	}

	stored := copyDocument(doc)
	if stored.ID == "" {
		stored.ID = model.NewDocumentID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	bucket, exists := x.collections[collection]
	if !exists {
		bucket = make(map[model.DocumentID]*indexEntry)
		x.collections[collection] = bucket
	}
	bucket[stored.ID] = &indexEntry{doc: stored, embedding: vector}

	return stored.ID, nil
}

func (x *similarityIndex) DeleteDocuments(ctx context.Context, collection string, sel model.DeleteSelector) (int, error) {
	if sel.IsEmpty() {
		return 0, goerr.Wrap(model.ErrMissingSelector, "failed to delete documents", goerr.V(model.CollectionKey, collection))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	bucket, exists := x.collections[collection]
	if !exists {
		return 0, nil
	}

	targets := make([]model.DocumentID, 0)
	if len(sel.IDs) > 0 {
		targets = append(targets, sel.IDs...)
	} else {
		for id := range bucket {
			targets = append(targets, id)
		}
	}

	deleted := 0
	for _, id := range targets {
		e, ok := bucket[id]
		if !ok || !model.MatchMetadata(e.doc.Metadata, sel.Where) {
			continue
		}
		delete(bucket, id)
		deleted++
	}
	return deleted, nil
}

func (x *similarityIndex) DeleteCollection(ctx context.Context, collection string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.collections, collection)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
