package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// unknownUpdatedAt is reported when a user has no context record yet
const unknownUpdatedAt = "N/A"

type contextRequest struct {
	ContextData map[string]any `json:"context_data"`
}

type contextResponse struct {
	UserID      string         `json:"user_id"`
	ContextData map[string]any `json:"context_data"`
	UpdatedAt   string         `json:"updated_at"`
}

func toContextResponse(rec *model.ContextRecord) contextResponse {
	values := rec.Values
	if values == nil {
		values = map[string]any{}
	}
	return contextResponse{
		UserID:      rec.UserID,
		ContextData: values,
		UpdatedAt:   rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func getContextHandler(uc *usecase.ContextUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := chi.URLParam(r, "user_id")

		rec, err := uc.Get(ctx, userID)
		if errors.Is(err, usecase.ErrContextNotFound) {
			writeJSON(ctx, w, http.StatusOK, contextResponse{
				UserID:      userID,
				ContextData: map[string]any{},
				UpdatedAt:   unknownUpdatedAt,
			})
			return
		}
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, toContextResponse(rec))
	}
}

func updateContextHandler(uc *usecase.ContextUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := chi.URLParam(r, "user_id")

		var req contextRequest
		if err := decodeJSON(r, w, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		rec, err := uc.Update(ctx, userID, req.ContextData)
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, toContextResponse(rec))
	}
}

func deleteContextHandler(uc *usecase.ContextUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := chi.URLParam(r, "user_id")

		existed, err := uc.Delete(ctx, userID)
		if err != nil {
			handleError(ctx, w, err)
			return
		}
		if !existed {
			handleError(ctx, w, goerr.Wrap(usecase.ErrContextNotFound, "context not found for deletion",
				goerr.V(model.UserIDKey, userID)))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type historyTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	UserID  string        `json:"user_id"`
	History []historyTurn `json:"history"`
}

func historyHandler(uc *usecase.ContextUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := chi.URLParam(r, "user_id")

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				handleError(ctx, w, goerr.Wrap(usecase.ErrValidation, "limit must be an integer", goerr.V("limit", v)))
				return
			}
			limit = n
		}

		turns, err := uc.History(ctx, userID, limit)
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		resp := historyResponse{
			UserID:  userID,
			History: make([]historyTurn, 0, len(turns)),
		}
		for _, turn := range turns {
			resp.History = append(resp.History, historyTurn{
				Role:      string(turn.Role),
				Content:   turn.Content,
				Timestamp: turn.Timestamp.UTC().Format(time.RFC3339Nano),
			})
		}
		writeJSON(ctx, w, http.StatusOK, resp)
	}
}
