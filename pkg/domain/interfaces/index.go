package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// SimilarityIndex stores documents per collection and ranks them against query text
type SimilarityIndex interface {
	// Query returns up to q.Limit fragments ordered by ascending dissimilarity.
	// An absent collection yields an empty list, not an error.
	Query(ctx context.Context, q model.SimilarityQuery) ([]*model.RetrievedFragment, error)

	// Upsert writes doc into collection, assigning an ID when doc.ID is empty
	Upsert(ctx context.Context, collection string, doc *model.Document) (model.DocumentID, error)

	// DeleteDocuments removes the documents chosen by sel and returns how many were removed
	DeleteDocuments(ctx context.Context, collection string, sel model.DeleteSelector) (int, error)

	// DeleteCollection removes a collection with all of its documents
	DeleteCollection(ctx context.Context, collection string) error
}

// Embedder converts texts into embedding vectors of model.EmbeddingDimension
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
