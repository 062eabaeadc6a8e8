package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// DefaultQueryLimit is used when a document query does not specify a limit
const DefaultQueryLimit = 5

// DocumentUseCase manages documents of similarity collections
type DocumentUseCase struct {
	index interfaces.SimilarityIndex
}

func NewDocumentUseCase(index interfaces.SimilarityIndex) *DocumentUseCase {
	return &DocumentUseCase{index: index}
}

// Add upserts docs into collection and returns their IDs in input order
func (uc *DocumentUseCase) Add(ctx context.Context, collection string, docs []*model.Document) ([]model.DocumentID, error) {
	if collection == "" {
		return nil, goerr.Wrap(model.ErrMissingCollection, "failed to add documents")
	}
	if len(docs) == 0 {
		return nil, goerr.Wrap(ErrValidation, "at least one document is required",
			goerr.V(model.CollectionKey, collection))
	}
	for i, doc := range docs {
		if doc == nil {
			return nil, goerr.Wrap(ErrValidation, "document is null", goerr.V("index", i))
		}
		if err := doc.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid document", goerr.V("index", i))
		}
	}

	ids := make([]model.DocumentID, 0, len(docs))
	for _, doc := range docs {
		id, err := uc.index.Upsert(ctx, collection, doc)
		if err != nil {
			return ids, goerr.Wrap(err, "failed to add document",
				goerr.V(model.CollectionKey, collection), goerr.V("added", len(ids)))
		}
		ids = append(ids, id)
	}

	logging.From(ctx).Info("documents added", "collection", collection, "count", len(ids))
	return ids, nil
}

// Query returns up to limit fragments of collection ordered by similarity,
// restricted to documents whose metadata matches where
func (uc *DocumentUseCase) Query(ctx context.Context, collection, text string, limit int, where map[string]string) ([]*model.RetrievedFragment, error) {
	if collection == "" {
		return nil, goerr.Wrap(model.ErrMissingCollection, "failed to query documents")
	}
	if text == "" {
		return nil, goerr.Wrap(ErrValidation, "query text is required", goerr.V(model.CollectionKey, collection))
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	fragments, err := uc.index.Query(ctx, model.SimilarityQuery{
		Collection: collection,
		Text:       text,
		Limit:      limit,
		Where:      where,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query documents", goerr.V(model.CollectionKey, collection))
	}
	return fragments, nil
}

// Delete removes documents chosen by ids or metadata equality. One of them is required.
func (uc *DocumentUseCase) Delete(ctx context.Context, collection string, sel model.DeleteSelector) (int, error) {
	if collection == "" {
		return 0, goerr.Wrap(model.ErrMissingCollection, "failed to delete documents")
	}
	if sel.IsEmpty() {
		return 0, goerr.Wrap(model.ErrMissingSelector, "failed to delete documents",
			goerr.V(model.CollectionKey, collection))
	}

	n, err := uc.index.DeleteDocuments(ctx, collection, sel)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete documents", goerr.V(model.CollectionKey, collection))
	}

	logging.From(ctx).Info("documents deleted", "collection", collection, "count", n)
	return n, nil
}

// DeleteCollection removes a collection with every document in it
func (uc *DocumentUseCase) DeleteCollection(ctx context.Context, collection string) error {
	if collection == "" {
		return goerr.Wrap(model.ErrMissingCollection, "failed to delete collection")
	}
	if err := uc.index.DeleteCollection(ctx, collection); err != nil {
		return goerr.Wrap(err, "failed to delete collection", goerr.V(model.CollectionKey, collection))
	}

	logging.From(ctx).Info("collection deleted", "collection", collection)
	return nil
}
