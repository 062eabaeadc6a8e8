package http

import (
	"net/http"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

type chatRequest struct {
	UserID         string `json:"user_id"`
	UserMessage    string `json:"user_message"`
	CollectionName string `json:"collection_name"`
}

type sourceDocument struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

type chatResponse struct {
	AIResponse      string           `json:"ai_response"`
	SourceDocuments []sourceDocument `json:"source_documents"`
	MessageID       string           `json:"message_id"`
}

func toSourceDocuments(fragments []*model.RetrievedFragment) []sourceDocument {
	out := make([]sourceDocument, 0, len(fragments))
	for _, f := range fragments {
		metadata := f.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		out = append(out, sourceDocument{
			ID:       string(f.ID),
			Content:  f.Content,
			Metadata: metadata,
			Distance: f.Dissimilarity,
		})
	}
	return out
}

func chatHandler(uc *usecase.ChatUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req chatRequest
		if err := decodeJSON(r, w, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		result, err := uc.ProcessTurn(ctx, model.TurnRequest{
			UserID:     req.UserID,
			Message:    req.UserMessage,
			Collection: req.CollectionName,
		})
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, chatResponse{
			AIResponse:      result.ResponseText,
			SourceDocuments: toSourceDocuments(result.SourceFragments),
			MessageID:       string(result.TurnID),
		})
	}
}
