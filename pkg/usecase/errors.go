package usecase

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Sentinel errors for use case layer
var (
	// ErrValidation marks a rejected request. It is the only error class
	// that reaches callers of the chat pipeline.
	ErrValidation = goerr.New("validation failed")

	ErrContextNotFound = goerr.New("context not found")
)

// Context keys for error values
const (
	TurnIDKey = "turn_id"
	TierKey   = "tier"
)

var validationErrors = []error{
	ErrValidation,
	model.ErrMissingUserID,
	model.ErrMissingMessage,
	model.ErrMissingCollection,
	model.ErrMissingSelector,
	model.ErrEmptyContent,
	model.ErrInvalidRole,
}

// IsValidationError reports whether err is a pre-condition failure that should
// be surfaced to the caller as a rejected request
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
