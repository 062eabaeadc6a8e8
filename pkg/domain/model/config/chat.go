package config

import (
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultSystemInstruction is the static instruction text placed at the top of the system message
const DefaultSystemInstruction = "You are a helpful and knowledgeable AI assistant. " +
	"Your goal is to provide accurate and concise answers based on the provided context. " +
	"If the answer cannot be found in the context, politely state that you don't know " +
	"or that the information is not available in the provided documents. " +
	"Avoid making up information."

// Default collection names of the fixed tiers
const (
	DefaultPastQACollection     = "user_past_questions_answers"
	DefaultHistoricalCollection = "user_long_term_memory"
	DefaultCognitiveCollection  = "cognitive_knowledge_base"
)

// DefaultHistoricalKeywords trigger the historical tier query
var DefaultHistoricalKeywords = []string{
	"yesterday",
	"last time",
	"remember",
	"before",
	"information",
	"previously",
	"earlier",
}

// TierConfig is the shape shared by every retrieval tier.
// Collection is empty for the general tier, whose collection is chosen per request.
type TierConfig struct {
	Collection string
	Limit      int
	Threshold  float64
}

// Validate checks the tier settings
func (t *TierConfig) Validate(name string, needCollection bool) error {
	if needCollection && t.Collection == "" {
		return goerr.New("tier collection is required", goerr.V("tier", name))
	}
	if t.Limit < 0 {
		return goerr.New("tier limit must not be negative", goerr.V("tier", name), goerr.V("limit", t.Limit))
	}
	if math.IsNaN(t.Threshold) || t.Threshold > 1 {
		return goerr.New("tier threshold must be at most 1", goerr.V("tier", name), goerr.V("threshold", t.Threshold))
	}
	return nil
}

// ChatConfig holds every tuning knob of the context assembly pipeline
type ChatConfig struct {
	SystemInstruction    string
	ContextWindow        int
	ThresholdFraction    float64
	ReservedOutputTokens int
	MaxHistoryLength     int
	CompletionTimeout    time.Duration

	PastQA     TierConfig
	General    TierConfig
	Historical TierConfig
	Cognitive  TierConfig

	HistoricalKeywords []string
}

// DefaultChatConfig returns the configuration used when nothing is overridden
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		SystemInstruction:    DefaultSystemInstruction,
		ContextWindow:        120000,
		ThresholdFraction:    0.90,
		ReservedOutputTokens: 2000,
		MaxHistoryLength:     100,
		CompletionTimeout:    60 * time.Second,
		PastQA: TierConfig{
			Collection: DefaultPastQACollection,
			Limit:      2,
			Threshold:  0.85,
		},
		General: TierConfig{
			Limit:     4,
			Threshold: 0.3,
		},
		Historical: TierConfig{
			Collection: DefaultHistoricalCollection,
			Limit:      2,
			Threshold:  0.3,
		},
		Cognitive: TierConfig{
			Collection: DefaultCognitiveCollection,
			Limit:      3,
			Threshold:  0.3,
		},
		HistoricalKeywords: append([]string(nil), DefaultHistoricalKeywords...),
	}
}

// Validate checks if the ChatConfig is usable
func (c *ChatConfig) Validate() error {
	if c.ContextWindow <= 0 {
		return goerr.New("context window must be positive", goerr.V("context_window", c.ContextWindow))
	}
	if c.ThresholdFraction <= 0 || c.ThresholdFraction > 1 {
		return goerr.New("threshold fraction must be in (0, 1]", goerr.V("threshold_fraction", c.ThresholdFraction))
	}
	if c.ReservedOutputTokens < 0 {
		return goerr.New("reserved output tokens must not be negative", goerr.V("reserved_output_tokens", c.ReservedOutputTokens))
	}
	if c.MaxHistoryLength <= 0 {
		return goerr.New("max history length must be positive", goerr.V("max_history_length", c.MaxHistoryLength))
	}
	if c.CompletionTimeout <= 0 {
		return goerr.New("completion timeout must be positive", goerr.V("completion_timeout", c.CompletionTimeout))
	}

	if err := c.PastQA.Validate("past_qa", true); err != nil {
		return err
	}
	if err := c.General.Validate("general", false); err != nil {
		return err
	}
	if err := c.Historical.Validate("historical", true); err != nil {
		return err
	}
	if err := c.Cognitive.Validate("cognitive", true); err != nil {
		return err
	}
	return nil
}

// HistoryBudget returns the token allowance for history given the tokens
// already reserved by the system message and the current user message.
// The result may be zero or negative.
func (c *ChatConfig) HistoryBudget(reserved int) int {
	window := int(math.Floor(float64(c.ContextWindow) * c.ThresholdFraction))
	return window - reserved - c.ReservedOutputTokens
}
