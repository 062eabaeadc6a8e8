package model

import "github.com/secmon-lab/mnemosyne/pkg/domain/types"

// PromptMessage is one role-tagged unit of the sequence handed to the completion call
type PromptMessage struct {
	Role    types.PromptRole
	Content string
}

// Tokens returns the approximate token cost of the message
func (m PromptMessage) Tokens() int {
	return EstimateTokens(m.Content)
}
