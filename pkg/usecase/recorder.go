package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// TurnRecorder persists a finished turn into the history and the past-QA collection
type TurnRecorder struct {
	store            interfaces.MemoryStore
	index            interfaces.SimilarityIndex
	pastQACollection string
	now              func() time.Time

	extractor           interfaces.KnowledgeExtractor
	knowledgeCollection string
}

type RecorderOption func(*TurnRecorder)

// WithKnowledgeExtraction additionally stores facts distilled by extractor
// into collection, scoped to the user.
func WithKnowledgeExtraction(extractor interfaces.KnowledgeExtractor, collection string) RecorderOption {
	return func(r *TurnRecorder) {
		r.extractor = extractor
		r.knowledgeCollection = collection
	}
}

func NewTurnRecorder(store interfaces.MemoryStore, index interfaces.SimilarityIndex, pastQACollection string, opts ...RecorderOption) *TurnRecorder {
	r := &TurnRecorder{
		store:            store,
		index:            index,
		pastQACollection: pastQACollection,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record runs the writes concurrently. Each failure is logged and swallowed.
func (r *TurnRecorder) Record(ctx context.Context, turnID model.TurnID, userID, message, response string) {
	logger := logging.From(ctx)

	var eg errgroup.Group
	eg.Go(func() error {
		if err := r.appendHistory(ctx, userID, message, response); err != nil {
			logger.Warn("failed to record history", "user_id", userID, "turn_id", turnID, "error", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := r.storePastAnswer(ctx, turnID, userID, message, response); err != nil {
			logger.Warn("failed to record past answer", "user_id", userID, "turn_id", turnID, "error", err)
		}
		return nil
	})
	if r.extractor != nil {
		eg.Go(func() error {
			n, err := r.storeKnowledge(ctx, turnID, userID, message, response)
			if err != nil {
				logger.Warn("failed to record knowledge", "user_id", userID, "turn_id", turnID, "error", err)
				return nil
			}
			if n > 0 {
				logger.Debug("knowledge recorded", "user_id", userID, "turn_id", turnID, "count", n)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

func (r *TurnRecorder) appendHistory(ctx context.Context, userID, message, response string) error {
	if r.store == nil {
		return goerr.New("memory store is not configured")
	}

	if err := r.store.AppendTurn(ctx, userID, model.NewChatTurn(types.ChatRoleUser, message, r.now())); err != nil {
		return goerr.Wrap(err, "failed to append user turn")
	}
	if err := r.store.AppendTurn(ctx, userID, model.NewChatTurn(types.ChatRoleModel, response, r.now())); err != nil {
		return goerr.Wrap(err, "failed to append model turn")
	}
	return nil
}

func (r *TurnRecorder) storePastAnswer(ctx context.Context, turnID model.TurnID, userID, message, response string) error {
	if r.index == nil {
		return goerr.New("similarity index is not configured")
	}

	doc := &model.Document{
		ID:      model.DocumentID(turnID),
		Content: response,
		Metadata: map[string]any{
			model.UserIDKey:      userID,
			questionMetadataKey:  message,
			timestampMetadataKey: r.now().UTC().Format(time.RFC3339),
		},
	}
	if _, err := r.index.Upsert(ctx, r.pastQACollection, doc); err != nil {
		return goerr.Wrap(err, "failed to upsert past answer", goerr.V(TurnIDKey, turnID))
	}
	return nil
}

func (r *TurnRecorder) storeKnowledge(ctx context.Context, turnID model.TurnID, userID, message, response string) (int, error) {
	if r.index == nil {
		return 0, goerr.New("similarity index is not configured")
	}

	facts, err := r.extractor.Extract(ctx, model.TurnExchange{
		TurnID:   turnID,
		UserID:   userID,
		Message:  message,
		Response: response,
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to extract knowledge", goerr.V(TurnIDKey, turnID))
	}

	stored := 0
	for _, fact := range facts {
		doc := &model.Document{
			Content: fact.Summary,
			Metadata: map[string]any{
				model.UserIDKey:      userID,
				titleMetadataKey:     fact.Title,
				turnIDMetadataKey:    string(turnID),
				timestampMetadataKey: r.now().UTC().Format(time.RFC3339),
			},
		}
		if _, err := r.index.Upsert(ctx, r.knowledgeCollection, doc); err != nil {
			return stored, goerr.Wrap(err, "failed to upsert knowledge",
				goerr.V(TurnIDKey, turnID), goerr.V("stored", stored))
		}
		stored++
	}
	return stored, nil
}
