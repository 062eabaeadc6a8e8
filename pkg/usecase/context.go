package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// ContextUseCase exposes the per-user context record and history as pass-through operations
type ContextUseCase struct {
	store interfaces.MemoryStore
}

func NewContextUseCase(store interfaces.MemoryStore) *ContextUseCase {
	return &ContextUseCase{store: store}
}

// Get returns the user's context record or ErrContextNotFound
func (uc *ContextUseCase) Get(ctx context.Context, userID string) (*model.ContextRecord, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrMissingUserID, "failed to get context")
	}

	rec, err := uc.store.GetContext(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get context", goerr.V(model.UserIDKey, userID))
	}
	if rec == nil {
		return nil, goerr.Wrap(ErrContextNotFound, "no context for user", goerr.V(model.UserIDKey, userID))
	}
	return rec, nil
}

// Update merge-writes values into the user's context record
func (uc *ContextUseCase) Update(ctx context.Context, userID string, values map[string]any) (*model.ContextRecord, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrMissingUserID, "failed to update context")
	}
	if len(model.SanitizeContextValues(values)) == 0 {
		return nil, goerr.Wrap(ErrValidation, "context data must contain at least one attribute",
			goerr.V(model.UserIDKey, userID))
	}

	rec, err := uc.store.MergeContext(ctx, userID, values)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update context", goerr.V(model.UserIDKey, userID))
	}

	logging.From(ctx).Info("context updated", "user_id", userID, "keys", len(values))
	return rec, nil
}

// Delete removes both the context record and the history of the user.
// It reports whether anything existed.
func (uc *ContextUseCase) Delete(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, goerr.Wrap(model.ErrMissingUserID, "failed to delete context")
	}

	contextExisted, err := uc.store.DeleteContext(ctx, userID)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete context", goerr.V(model.UserIDKey, userID))
	}
	historyExisted, err := uc.store.DeleteHistory(ctx, userID)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete history", goerr.V(model.UserIDKey, userID))
	}

	logging.From(ctx).Info("context deleted", "user_id", userID,
		"context_existed", contextExisted, "history_existed", historyExisted)
	return contextExisted || historyExisted, nil
}

// History returns up to limit most recent turns in chronological order
func (uc *ContextUseCase) History(ctx context.Context, userID string, limit int) ([]*model.ChatTurn, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrMissingUserID, "failed to get history")
	}
	if limit < 0 {
		return nil, goerr.Wrap(ErrValidation, "limit must not be negative", goerr.V("limit", limit))
	}

	turns, err := uc.store.ListTurns(ctx, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get history", goerr.V(model.UserIDKey, userID))
	}
	return turns, nil
}
