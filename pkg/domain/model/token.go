package model

import "unicode/utf8"

// CharsPerToken is the divisor of the token-count heuristic
const CharsPerToken = 4

// EstimateTokens approximates the token count of text as characters / 4 (floor).
// It is deterministic and intentionally not a real tokenizer.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / CharsPerToken
}
