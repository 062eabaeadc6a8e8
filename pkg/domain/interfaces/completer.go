package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Completer sends an ordered role-tagged message sequence to a language model
type Completer interface {
	Complete(ctx context.Context, messages []model.PromptMessage) (string, error)
}
