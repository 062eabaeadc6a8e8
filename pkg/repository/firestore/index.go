package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// distanceField receives the cosine distance computed by FindNearest
const distanceField = "Distance"

// documentDoc is the Firestore representation of model.Document.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type documentDoc struct {
	ID        model.DocumentID   `firestore:"ID"`
	Content   string             `firestore:"Content"`
	Metadata  map[string]any     `firestore:"Metadata"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
	Distance  float64            `firestore:"Distance,omitempty"`
}

type similarityIndex struct {
	client           *firestore.Client
	embedder         interfaces.Embedder
	collectionPrefix string
}

func newSimilarityIndex(client *firestore.Client) *similarityIndex {
	return &similarityIndex{client: client}
}

// documentsCollection returns the subcollection path:
// collections/{collection}/documents
func (x *similarityIndex) documentsCollection(collection string) *firestore.CollectionRef {
	return x.client.Collection(x.collectionPrefix + "collections").Doc(collection).Collection("documents")
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

	vector, err := x.embed(ctx, q.Text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query similarity index", goerr.V(model.CollectionKey, q.Collection))
	}

	query := x.documentsCollection(q.Collection).Query
	for k, v := range q.Where {
		query = query.Where("Metadata."+k, "==", v)
	}

	vq := query.FindNearest("Embedding", firestore.Vector32(vector), q.Limit,
		firestore.DistanceMeasureCosine, &firestore.FindNearestOptions{
			DistanceResultField: distanceField,
		})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	fragments := make([]*model.RetrievedFragment, 0, q.Limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results", goerr.V(model.CollectionKey, q.Collection))
		}

		var d documentDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document from vector search")
		}

		fragments = append(fragments, &model.RetrievedFragment{
			ID:            d.ID,
			Content:       d.Content,
			Metadata:      d.Metadata,
			Dissimilarity: d.Distance,
		})
	}

	return fragments, nil
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

	id := doc.ID
	if id == "" {
		id = model.NewDocumentID()
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	d := &documentDoc{
		ID:        id,
		Content:   doc.Content,
		Metadata:  metadata,
		Embedding: firestore.Vector32(vector),
		CreatedAt: createdAt,
	}
	if _, err := x.documentsCollection(collection).Doc(string(id)).Set(ctx, d); err != nil {
		return "", goerr.Wrap(err, "failed to write document",
			goerr.V(model.CollectionKey, collection), goerr.V("id", id))
	}

	return id, nil
}

func (x *similarityIndex) DeleteDocuments(ctx context.Context, collection string, sel model.DeleteSelector) (int, error) {
	if sel.IsEmpty() {
		return 0, goerr.Wrap(model.ErrMissingSelector, "failed to delete documents", goerr.V(model.CollectionKey, collection))
	}

	refs, err := x.selectDocuments(ctx, collection, sel)
	if err != nil {
		return 0, err
	}
	if err := x.deleteRefs(ctx, refs); err != nil {
		return 0, goerr.Wrap(err, "failed to delete documents", goerr.V(model.CollectionKey, collection))
	}
	return len(refs), nil
}

func (x *similarityIndex) DeleteCollection(ctx context.Context, collection string) error {
	iter := x.documentsCollection(collection).Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate collection", goerr.V(model.CollectionKey, collection))
		}
		refs = append(refs, doc.Ref)
	}

	if err := x.deleteRefs(ctx, refs); err != nil {
		return goerr.Wrap(err, "failed to delete collection", goerr.V(model.CollectionKey, collection))
	}
	return nil
}

func (x *similarityIndex) selectDocuments(ctx context.Context, collection string, sel model.DeleteSelector) ([]*firestore.DocumentRef, error) {
	var refs []*firestore.DocumentRef

	if len(sel.IDs) > 0 {
		for _, id := range sel.IDs {
			ref := x.documentsCollection(collection).Doc(string(id))
			doc, err := ref.Get(ctx)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					continue
				}
				return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
			}
			var d documentDoc
			if err := doc.DataTo(&d); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal document", goerr.V("id", id))
			}
			if model.MatchMetadata(d.Metadata, sel.Where) {
				refs = append(refs, ref)
			}
		}
		return refs, nil
	}

	query := x.documentsCollection(collection).Query
	for k, v := range sel.Where {
		query = query.Where("Metadata."+k, "==", v)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V(model.CollectionKey, collection))
		}
		refs = append(refs, doc.Ref)
	}
	return refs, nil
}

func (x *similarityIndex) deleteRefs(ctx context.Context, refs []*firestore.DocumentRef) error {
	if len(refs) == 0 {
		return nil
	}

	bulkWriter := x.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bulkWriter.Delete(ref)
		if err != nil {
			bulkWriter.End()
			return goerr.Wrap(err, "failed to enqueue delete", goerr.V("path", ref.Path))
		}
		jobs = append(jobs, job)
	}
	bulkWriter.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to delete document")
		}
	}
	return nil
}
