package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

const (
	pastAnswerDateLayout = "January 2, 2006 at 15:04 MST"
	unknownDate          = "unknown date"
	timestampMetadataKey = "timestamp"
	questionMetadataKey  = "question"
	titleMetadataKey     = "title"
	turnIDMetadataKey    = "turn_id"
)

// PromptComposer turns retrieved context, budgeted history and the user
// message into the ordered message sequence for the completion call
type PromptComposer struct {
	instruction string
}

func NewPromptComposer(instruction string) *PromptComposer {
	return &PromptComposer{instruction: instruction}
}

// SystemMessage renders the instruction followed by the general, historical
// and cognitive blocks. A tier without fragments emits no heading.
func (c *PromptComposer) SystemMessage(rc *model.RetrievedContext) model.PromptMessage {
	var sb strings.Builder
	sb.WriteString(c.instruction)

	for _, tier := range types.ContextTiers() {
		res := rc.Tier(tier)
		if !res.HasFragments() {
			continue
		}

		sb.WriteString("\n\n## ")
		sb.WriteString(tier.Heading())
		sb.WriteString("\n")
		for _, f := range res.Fragments {
			sb.WriteString("\n")
			sb.WriteString(f.Content)
		}
	}

	return model.PromptMessage{Role: types.PromptRoleSystem, Content: sb.String()}
}

// CurrentUserMessage returns the raw message, prefixed with past answers when
// the past-QA tier produced fragments
func (c *PromptComposer) CurrentUserMessage(rc *model.RetrievedContext, message string) model.PromptMessage {
	past := rc.Tier(types.TierPastQA)
	if !past.HasFragments() {
		return model.PromptMessage{Role: types.PromptRoleCurrentUser, Content: message}
	}

	lines := make([]string, 0, len(past.Fragments))
	for _, f := range past.Fragments {
		lines = append(lines, FormatPastAnswer(f))
	}

	return model.PromptMessage{
		Role:    types.PromptRoleCurrentUser,
		Content: strings.Join(lines, "\n") + "\n\n" + message,
	}
}

// Compose orders system message, history and current user message
func (c *PromptComposer) Compose(system model.PromptMessage, history []*model.ChatTurn, current model.PromptMessage) []model.PromptMessage {
	messages := make([]model.PromptMessage, 0, len(history)+2)
	messages = append(messages, system)
	for _, turn := range history {
		messages = append(messages, model.PromptMessage{
			Role:    types.HistoryPromptRole(turn.Role),
			Content: turn.Content,
		})
	}
	return append(messages, current)
}

// FormatPastAnswer renders a past-QA fragment as a dated line
func FormatPastAnswer(f *model.RetrievedFragment) string {
	return fmt.Sprintf("AI's past response on %s: %s", pastAnswerDate(f), f.Content)
}

func pastAnswerDate(f *model.RetrievedFragment) string {
	v, ok := f.Metadata[timestampMetadataKey]
	if !ok {
		return unknownDate
	}

	switch ts := v.(type) {
	case time.Time:
		return ts.UTC().Format(pastAnswerDateLayout)
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return unknownDate
		}
		return parsed.UTC().Format(pastAnswerDateLayout)
	default:
		return unknownDate
	}
}
