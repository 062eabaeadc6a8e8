package types

import "fmt"

// ChatRole identifies who produced a stored chat turn
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// AllChatRoles returns all valid chat roles
func AllChatRoles() []ChatRole {
	return []ChatRole{
		ChatRoleUser,
		ChatRoleModel,
	}
}

// IsValid checks if the chat role is valid
func (r ChatRole) IsValid() bool {
	switch r {
	case ChatRoleUser,
		ChatRoleModel:
		return true
	default:
		return false
	}
}

// String returns the string representation of the chat role
func (r ChatRole) String() string {
	return string(r)
}

// ParseChatRole parses a string into a ChatRole.
// "assistant" is accepted as an alias of ChatRoleModel for history written by older clients.
func ParseChatRole(s string) (ChatRole, error) {
	if s == "assistant" {
		return ChatRoleModel, nil
	}
	role := ChatRole(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid chat role: %s", s)
	}
	return role, nil
}

// PromptRole tags one message of the sequence handed to the completion call
type PromptRole string

const (
	PromptRoleSystem       PromptRole = "system"
	PromptRoleHistoryUser  PromptRole = "history_user"
	PromptRoleHistoryModel PromptRole = "history_model"
	PromptRoleCurrentUser  PromptRole = "current_user"
)

// IsValid checks if the prompt role is valid
func (r PromptRole) IsValid() bool {
	switch r {
	case PromptRoleSystem,
		PromptRoleHistoryUser,
		PromptRoleHistoryModel,
		PromptRoleCurrentUser:
		return true
	default:
		return false
	}
}

// String returns the string representation of the prompt role
func (r PromptRole) String() string {
	return string(r)
}

// HistoryPromptRole maps a stored chat role to its historical prompt role
func HistoryPromptRole(r ChatRole) PromptRole {
	if r == ChatRoleModel {
		return PromptRoleHistoryModel
	}
	return PromptRoleHistoryUser
}
