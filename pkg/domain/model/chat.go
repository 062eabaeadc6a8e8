package model

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// TurnID identifies one processed chat turn
type TurnID string

// NewTurnID generates a new UUID v4 TurnID
func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

// TurnRequest is the input of process_turn
type TurnRequest struct {
	UserID     string
	Message    string
	Collection string
}

// Validate checks the pre-conditions of a chat turn
func (r *TurnRequest) Validate() error {
	if r.UserID == "" {
		return goerr.Wrap(ErrMissingUserID, "invalid turn request")
	}
	if r.Message == "" {
		return goerr.Wrap(ErrMissingMessage, "invalid turn request", goerr.V(UserIDKey, r.UserID))
	}
	if r.Collection == "" {
		return goerr.Wrap(ErrMissingCollection, "invalid turn request", goerr.V(UserIDKey, r.UserID))
	}
	return nil
}

// TurnResult is the output of process_turn
type TurnResult struct {
	ResponseText    string
	SourceFragments []*RetrievedFragment
	TurnID          TurnID
}

// TierResult is the outcome of querying one retrieval tier: either fragments,
// a failure reason, or skipped when the tier was gated off.
type TierResult struct {
	Tier      types.Tier
	Fragments []*RetrievedFragment
	Err       error
	Skipped   bool
}

// OK reports whether the tier was queried successfully
func (r *TierResult) OK() bool {
	return !r.Skipped && r.Err == nil
}

// HasFragments reports whether the tier contributes anything
func (r *TierResult) HasFragments() bool {
	return r != nil && len(r.Fragments) > 0
}

// RetrievedContext holds the tier results of one turn in fixed tier order
type RetrievedContext struct {
	results map[types.Tier]*TierResult
}

// NewRetrievedContext builds a RetrievedContext from tier results
func NewRetrievedContext(results ...*TierResult) *RetrievedContext {
	rc := &RetrievedContext{results: make(map[types.Tier]*TierResult, len(results))}
	for _, r := range results {
		if r != nil {
			rc.results[r.Tier] = r
		}
	}
	return rc
}

// Tier returns the result of tier, or an empty result when the tier is unknown
func (c *RetrievedContext) Tier(tier types.Tier) *TierResult {
	if c != nil {
		if r, ok := c.results[tier]; ok {
			return r
		}
	}
	return &TierResult{Tier: tier}
}

// Fragments flattens every tier's fragments in tier order
func (c *RetrievedContext) Fragments() []*RetrievedFragment {
	out := make([]*RetrievedFragment, 0)
	for _, tier := range types.AllTiers() {
		out = append(out, c.Tier(tier).Fragments...)
	}
	return out
}
