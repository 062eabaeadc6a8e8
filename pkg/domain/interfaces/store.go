package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// MemoryStore holds per-user context attributes and a length-capped chat history.
// Context and history of a user are independently addressable and deletable.
type MemoryStore interface {
	// GetContext returns the user's context record, or nil without error when none exists
	GetContext(ctx context.Context, userID string) (*model.ContextRecord, error)

	// MergeContext adds or overwrites the given keys and stamps updated_at with the store's clock.
	// Keys absent from values are left untouched.
	MergeContext(ctx context.Context, userID string, values map[string]any) (*model.ContextRecord, error)

	// DeleteContext removes the user's context record and reports whether it existed
	DeleteContext(ctx context.Context, userID string) (bool, error)

	// AppendTurn validates and appends one turn, evicting the oldest turns beyond the cap.
	// Appends for the same user are serialized.
	AppendTurn(ctx context.Context, userID string, turn *model.ChatTurn) error

	// ListTurns returns up to limit most recent turns in chronological order.
	// A non-positive limit returns every stored turn. Undecodable entries are skipped.
	ListTurns(ctx context.Context, userID string, limit int) ([]*model.ChatTurn, error)

	// DeleteHistory removes the user's whole history and reports whether it existed
	DeleteHistory(ctx context.Context, userID string) (bool, error)
}
