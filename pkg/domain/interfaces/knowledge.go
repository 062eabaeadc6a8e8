package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// KnowledgeExtractor distills long-term facts about the user from a finished turn.
// An empty result means nothing worth remembering was said.
type KnowledgeExtractor interface {
	Extract(ctx context.Context, exchange model.TurnExchange) ([]*model.Knowledge, error)
}
