package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

type documentBody struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type collectionBody struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type documentsAddedResponse struct {
	CollectionName string   `json:"collection_name"`
	AddedCount     int      `json:"added_count"`
	IDs            []string `json:"ids"`
}

type queryRequest struct {
	QueryTexts []string       `json:"query_texts"`
	NResults   int            `json:"n_results"`
	Where      map[string]any `json:"where"`
}

type queryResult struct {
	Document documentBody `json:"document"`
	Distance float64      `json:"distance"`
}

type deleteDocumentsRequest struct {
	IDs   []string       `json:"ids"`
	Where map[string]any `json:"where"`
}

// toWhere stringifies filter values. Metadata equality is compared on the string form.
func toWhere(where map[string]any) map[string]string {
	if len(where) == 0 {
		return nil
	}
	out := make(map[string]string, len(where))
	for k, v := range where {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Collections exist implicitly once a document is added, so creation only
// validates and echoes the name.
func createCollectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req collectionBody
		if err := decodeJSON(r, w, &req); err != nil {
			handleError(ctx, w, err)
			return
		}
		if req.Name == "" {
			handleError(ctx, w, goerr.Wrap(model.ErrMissingCollection, "failed to create collection"))
			return
		}

		writeJSON(ctx, w, http.StatusCreated, req)
	}
}

func deleteCollectionHandler(uc *usecase.DocumentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := uc.DeleteCollection(ctx, chi.URLParam(r, "collection")); err != nil {
			handleError(ctx, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addDocumentsHandler(uc *usecase.DocumentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		collection := chi.URLParam(r, "collection")

		var req []documentBody
		if err := decodeJSON(r, w, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		docs := make([]*model.Document, 0, len(req))
		for _, d := range req {
			docs = append(docs, &model.Document{
				ID:       model.DocumentID(d.ID),
				Content:  d.Content,
				Metadata: d.Metadata,
			})
		}

		ids, err := uc.Add(ctx, collection, docs)
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		resp := documentsAddedResponse{
			CollectionName: collection,
			AddedCount:     len(ids),
			IDs:            make([]string, 0, len(ids)),
		}
		for _, id := range ids {
			resp.IDs = append(resp.IDs, string(id))
		}
		writeJSON(ctx, w, http.StatusCreated, resp)
	}
}

func queryDocumentsHandler(uc *usecase.DocumentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		collection := chi.URLParam(r, "collection")

		var req queryRequest
		if err := decodeJSON(r, w, &req); err != nil {
			handleError(ctx, w, err)
			return
		}
		if len(req.QueryTexts) == 0 {
			handleError(ctx, w, goerr.Wrap(usecase.ErrValidation, "query_texts is required"))
			return
		}

		where := toWhere(req.Where)
		results := make([][]queryResult, 0, len(req.QueryTexts))
		for _, text := range req.QueryTexts {
			fragments, err := uc.Query(ctx, collection, text, req.NResults, where)
			if err != nil {
				handleError(ctx, w, err)
				return
			}

			matched := make([]queryResult, 0, len(fragments))
			for _, f := range fragments {
				matched = append(matched, queryResult{
					Document: documentBody{
						ID:       string(f.ID),
						Content:  f.Content,
						Metadata: f.Metadata,
					},
					Distance: f.Dissimilarity,
				})
			}
			results = append(results, matched)
		}

		writeJSON(ctx, w, http.StatusOK, results)
	}
}

func deleteDocumentsHandler(uc *usecase.DocumentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		collection := chi.URLParam(r, "collection")

		var req deleteDocumentsRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, w, &req); err != nil {
				handleError(ctx, w, err)
				return
			}
		}

		sel := model.DeleteSelector{Where: toWhere(req.Where)}
		for _, id := range req.IDs {
			sel.IDs = append(sel.IDs, model.DocumentID(id))
		}

		if _, err := uc.Delete(ctx, collection, sel); err != nil {
			handleError(ctx, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
