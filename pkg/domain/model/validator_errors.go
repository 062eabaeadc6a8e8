package model

import "github.com/m-mizutani/goerr/v2"

// Validation errors
var (
	ErrInvalidRole       = goerr.New("invalid chat role")
	ErrEmptyContent      = goerr.New("content is empty")
	ErrMissingTimestamp  = goerr.New("timestamp is missing")
	ErrMalformedTurn     = goerr.New("malformed chat turn")
	ErrMissingUserID     = goerr.New("user_id is required")
	ErrMissingMessage    = goerr.New("user_message is required")
	ErrMissingCollection = goerr.New("collection_name is required")
	ErrMissingSelector   = goerr.New("either ids or where must be provided")
)

// Context keys for error values
const (
	UserIDKey     = "user_id"
	RoleKey       = "role"
	CollectionKey = "collection"
	PayloadKey    = "payload"
)
