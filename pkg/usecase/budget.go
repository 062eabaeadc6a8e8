package usecase

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// HistoryBudgeter loads stored history and trims it to the token budget
type HistoryBudgeter struct {
	store interfaces.MemoryStore
	cfg   config.ChatConfig
}

func NewHistoryBudgeter(store interfaces.MemoryStore, cfg config.ChatConfig) *HistoryBudgeter {
	return &HistoryBudgeter{store: store, cfg: cfg}
}

// Load returns the longest recent suffix of the user's history that fits the
// budget left after reserved tokens. It never fails: a store error yields an
// empty history.
func (b *HistoryBudgeter) Load(ctx context.Context, userID string, reserved int) []*model.ChatTurn {
	logger := logging.From(ctx)

	budget := b.cfg.HistoryBudget(reserved)
	if budget <= 0 {
		logger.Warn("no token budget left for history",
			"user_id", userID, "reserved", reserved, "budget", budget)
		return []*model.ChatTurn{}
	}

	if b.store == nil {
		return []*model.ChatTurn{}
	}

	turns, err := b.store.ListTurns(ctx, userID, 0)
	if err != nil {
		logger.Warn("failed to load history", "user_id", userID, "error", err)
		return []*model.ChatTurn{}
	}

	fitted := FitHistory(turns, budget)
	logger.Debug("history budgeted",
		"user_id", userID,
		"budget", budget,
		"stored", len(turns),
		"included", len(fitted),
	)
	return fitted
}

// FitHistory walks turns from most recent to oldest and keeps each turn while
// the running token total stays within budget. It stops at the first turn
// that does not fit, so the result is always a contiguous suffix, returned in
// chronological order.
func FitHistory(turns []*model.ChatTurn, budget int) []*model.ChatTurn {
	if budget <= 0 {
		return []*model.ChatTurn{}
	}

	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := turns[i].Tokens()
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}

	out := make([]*model.ChatTurn, len(turns)-start)
	copy(out, turns[start:])
	return out
}
