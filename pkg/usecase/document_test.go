package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

func newDocumentUseCase() *usecase.DocumentUseCase {
	return usecase.NewDocumentUseCase(memory.New(llm.NewHashEmbedder()).SimilarityIndex())
}

func TestDocumentUseCase_AddQueryDelete(t *testing.T) {
	ctx := context.Background()
	uc := newDocumentUseCase()

	ids, err := uc.Add(ctx, "faq", []*model.Document{
		{ID: "refund", Content: "refunds are issued within five business days", Metadata: map[string]any{"lang": "en"}},
		{ID: "shipping", Content: "orders ship from the warehouse every morning", Metadata: map[string]any{"lang": "en"}},
		{Content: "envío gratis en pedidos grandes", Metadata: map[string]any{"lang": "es"}},
	})
	gt.NoError(t, err).Required()
	gt.Array(t, ids).Length(3).Required()
	gt.Value(t, ids[0]).Equal(model.DocumentID("refund"))
	gt.String(t, string(ids[2])).NotEqual("")

	fragments, err := uc.Query(ctx, "faq", "refunds are issued within five business days", 0, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, fragments).Length(3).Required()
	gt.Value(t, fragments[0].ID).Equal(model.DocumentID("refund"))
	gt.Bool(t, fragments[0].Similarity() > 0.99).True()

	n, err := uc.Delete(ctx, "faq", model.DeleteSelector{Where: map[string]string{"lang": "en"}})
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(2)

	n, err = uc.Delete(ctx, "faq", model.DeleteSelector{IDs: []model.DocumentID{ids[2], "missing"}})
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(1)

	fragments, err = uc.Query(ctx, "faq", "refunds", 5, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, fragments).Length(0)
}

func TestDocumentUseCase_Upsert(t *testing.T) {
	ctx := context.Background()
	uc := newDocumentUseCase()

	_, err := uc.Add(ctx, "faq", []*model.Document{{ID: "doc", Content: "first version"}})
	gt.NoError(t, err).Required()
	_, err = uc.Add(ctx, "faq", []*model.Document{{ID: "doc", Content: "second version"}})
	gt.NoError(t, err).Required()

	fragments, err := uc.Query(ctx, "faq", "version", 10, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, fragments).Length(1).Required()
	gt.Value(t, fragments[0].Content).Equal("second version")
}

func TestDocumentUseCase_DeleteCollection(t *testing.T) {
	ctx := context.Background()
	uc := newDocumentUseCase()

	_, err := uc.Add(ctx, "faq", []*model.Document{{Content: "something"}})
	gt.NoError(t, err).Required()

	gt.NoError(t, uc.DeleteCollection(ctx, "faq")).Required()
	gt.NoError(t, uc.DeleteCollection(ctx, "faq")).Required()

	fragments, err := uc.Query(ctx, "faq", "something", 5, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, fragments).Length(0)
}

func TestDocumentUseCase_Validation(t *testing.T) {
	ctx := context.Background()
	uc := newDocumentUseCase()

	t.Run("empty selector", func(t *testing.T) {
		_, err := uc.Delete(ctx, "faq", model.DeleteSelector{})
		gt.Bool(t, errors.Is(err, model.ErrMissingSelector)).True()
		gt.Bool(t, usecase.IsValidationError(err)).True()
	})

	t.Run("missing collection", func(t *testing.T) {
		_, err := uc.Add(ctx, "", []*model.Document{{Content: "x"}})
		gt.Bool(t, usecase.IsValidationError(err)).True()
	})

	t.Run("no documents", func(t *testing.T) {
		_, err := uc.Add(ctx, "faq", nil)
		gt.Bool(t, usecase.IsValidationError(err)).True()
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := uc.Add(ctx, "faq", []*model.Document{{Content: "ok"}, {Content: ""}})
		gt.Bool(t, errors.Is(err, model.ErrEmptyContent)).True()
		gt.Bool(t, usecase.IsValidationError(err)).True()
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := uc.Query(ctx, "faq", "", 5, nil)
		gt.Bool(t, usecase.IsValidationError(err)).True()
	})
}
