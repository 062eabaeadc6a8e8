package model

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// ChatTurn is one stored message of a user's conversation history
type ChatTurn struct {
	Role      types.ChatRole
	Content   string
	Timestamp time.Time
}

// NewChatTurn creates a turn stamped with now in UTC
func NewChatTurn(role types.ChatRole, content string, now time.Time) *ChatTurn {
	return &ChatTurn{
		Role:      role,
		Content:   content,
		Timestamp: now.UTC(),
	}
}

// Validate checks the turn before it crosses the Memory Store boundary
func (t *ChatTurn) Validate() error {
	if !t.Role.IsValid() {
		return goerr.Wrap(ErrInvalidRole, "invalid chat turn", goerr.V(RoleKey, t.Role))
	}
	if t.Content == "" {
		return goerr.Wrap(ErrEmptyContent, "invalid chat turn", goerr.V(RoleKey, t.Role))
	}
	if t.Timestamp.IsZero() {
		return goerr.Wrap(ErrMissingTimestamp, "invalid chat turn", goerr.V(RoleKey, t.Role))
	}
	return nil
}

// Tokens returns the approximate token cost of the turn content
func (t *ChatTurn) Tokens() int {
	return EstimateTokens(t.Content)
}

type chatTurnJSON struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Encode serializes the turn into the persisted JSON form
func (t *ChatTurn) Encode() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(chatTurnJSON{
		Role:      t.Role.String(),
		Content:   t.Content,
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal chat turn")
	}
	return data, nil
}

// DecodeChatTurn parses a persisted turn. Every backend reads history through
// this function so malformed entries are rejected the same way everywhere.
func DecodeChatTurn(data []byte) (*ChatTurn, error) {
	var raw chatTurnJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, goerr.Wrap(ErrMalformedTurn, "failed to unmarshal chat turn",
			goerr.V(PayloadKey, string(data)), goerr.V("cause", err.Error()))
	}

	role, err := types.ParseChatRole(raw.Role)
	if err != nil {
		return nil, goerr.Wrap(ErrMalformedTurn, "unknown role in chat turn", goerr.V(RoleKey, raw.Role))
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return nil, goerr.Wrap(ErrMalformedTurn, "invalid timestamp in chat turn",
			goerr.V("timestamp", raw.Timestamp))
	}

	turn := &ChatTurn{Role: role, Content: raw.Content, Timestamp: ts.UTC()}
	if err := turn.Validate(); err != nil {
		return nil, goerr.Wrap(ErrMalformedTurn, err.Error())
	}
	return turn, nil
}
