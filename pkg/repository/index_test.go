package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/firestore"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
)

func runSimilarityIndexTest(t *testing.T, newIndex func(t *testing.T) interfaces.SimilarityIndex) {
	t.Helper()

	seed := func(t *testing.T, index interfaces.SimilarityIndex, collection string) {
		t.Helper()
		for _, doc := range []*model.Document{
			{ID: "refund", Content: "refunds are issued within five business days", Metadata: map[string]any{"user_id": "alice"}},
			{ID: "shipping", Content: "orders ship from the warehouse every morning", Metadata: map[string]any{"user_id": "bob"}},
			{ID: "warranty", Content: "the warranty covers two years of use", Metadata: map[string]any{"user_id": "alice"}},
		} {
			_, err := index.Upsert(context.Background(), collection, doc)
			gt.NoError(t, err).Required()
		}
	}

	t.Run("Query orders by dissimilarity and honors limit", func(t *testing.T) {
		index := newIndex(t)
		collection := uniqueUser("faq")
		seed(t, index, collection)

		fragments, err := index.Query(context.Background(), model.SimilarityQuery{
			Collection: collection,
			Text:       "refunds are issued within five business days",
			Limit:      2,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(2).Required()
		gt.Value(t, fragments[0].ID).Equal(model.DocumentID("refund"))
		gt.Bool(t, fragments[0].Dissimilarity < 0.01).True()
		gt.Bool(t, fragments[0].Dissimilarity <= fragments[1].Dissimilarity).True()
	})

	t.Run("Query filters by metadata", func(t *testing.T) {
		index := newIndex(t)
		collection := uniqueUser("faq")
		seed(t, index, collection)

		fragments, err := index.Query(context.Background(), model.SimilarityQuery{
			Collection: collection,
			Text:       "orders ship from the warehouse",
			Limit:      10,
			Where:      map[string]string{"user_id": "alice"},
		})
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(2)
		for _, f := range fragments {
			gt.Value(t, f.Metadata["user_id"]).Equal("alice")
		}
	})

	t.Run("Query on unknown collection is empty", func(t *testing.T) {
		index := newIndex(t)
		fragments, err := index.Query(context.Background(), model.SimilarityQuery{
			Collection: uniqueUser("missing"),
			Text:       "anything",
			Limit:      3,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(0)
	})

	t.Run("Upsert replaces a document with the same id", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		collection := uniqueUser("faq")

		_, err := index.Upsert(ctx, collection, &model.Document{ID: "doc", Content: "first version"})
		gt.NoError(t, err).Required()
		id, err := index.Upsert(ctx, collection, &model.Document{ID: "doc", Content: "second version"})
		gt.NoError(t, err).Required()
		gt.Value(t, id).Equal(model.DocumentID("doc"))

		fragments, err := index.Query(ctx, model.SimilarityQuery{Collection: collection, Text: "version", Limit: 10})
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(1).Required()
		gt.Value(t, fragments[0].Content).Equal("second version")
	})

	t.Run("Upsert assigns an id when missing", func(t *testing.T) {
		index := newIndex(t)
		id, err := index.Upsert(context.Background(), uniqueUser("faq"), &model.Document{Content: "no id"})
		gt.NoError(t, err).Required()
		gt.String(t, string(id)).NotEqual("")
	})

	t.Run("DeleteDocuments by ids and metadata", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		collection := uniqueUser("faq")
		seed(t, index, collection)

		n, err := index.DeleteDocuments(ctx, collection, model.DeleteSelector{
			IDs: []model.DocumentID{"refund", "unknown"},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, n).Equal(1)

		n, err = index.DeleteDocuments(ctx, collection, model.DeleteSelector{
			Where: map[string]string{"user_id": "bob"},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, n).Equal(1)

		fragments, err := index.Query(ctx, model.SimilarityQuery{Collection: collection, Text: "warranty", Limit: 10})
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(1).Required()
		gt.Value(t, fragments[0].ID).Equal(model.DocumentID("warranty"))
	})

	t.Run("DeleteDocuments requires a selector", func(t *testing.T) {
		index := newIndex(t)
		_, err := index.DeleteDocuments(context.Background(), uniqueUser("faq"), model.DeleteSelector{})
		gt.Bool(t, errors.Is(err, model.ErrMissingSelector)).True()
	})

	t.Run("DeleteCollection is idempotent", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		collection := uniqueUser("faq")
		seed(t, index, collection)

		gt.NoError(t, index.DeleteCollection(ctx, collection)).Required()
		gt.NoError(t, index.DeleteCollection(ctx, collection)).Required()

		fragments, err := index.Query(ctx, model.SimilarityQuery{Collection: collection, Text: "refunds", Limit: 10})
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(0)
	})
}

func TestMemorySimilarityIndex(t *testing.T) {
	runSimilarityIndexTest(t, func(t *testing.T) interfaces.SimilarityIndex {
		return memory.New(llm.NewHashEmbedder()).SimilarityIndex()
	})
}

func TestFirestoreSimilarityIndex(t *testing.T) {
	runSimilarityIndexTest(t, func(t *testing.T) interfaces.SimilarityIndex {
		return newFirestoreBackend(t, firestore.WithEmbedder(llm.NewHashEmbedder())).SimilarityIndex()
	})
}
