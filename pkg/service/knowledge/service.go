package knowledge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// client implements interfaces.KnowledgeExtractor
type client struct {
	llmClient gollem.LLMClient
	maxFacts  int
}

var _ interfaces.KnowledgeExtractor = &client{}

// Option is a functional option for client configuration
type Option func(*client)

// WithMaxFacts caps the number of facts kept from one turn
func WithMaxFacts(n int) Option {
	return func(c *client) {
		c.maxFacts = n
	}
}

// New creates a knowledge extractor backed by the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (interfaces.KnowledgeExtractor, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &client{
		llmClient: llmClient,
		maxFacts:  5,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Extract asks the LLM for facts about the user worth remembering across sessions
func (c *client) Extract(ctx context.Context, exchange model.TurnExchange) ([]*model.Knowledge, error) {
	if strings.TrimSpace(exchange.Message) == "" {
		return nil, nil
	}

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(buildSystemPrompt()),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildUserPrompt(exchange)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content from LLM")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.New("empty LLM response", goerr.V("turn_id", exchange.TurnID))
	}

	var llmResp llmResponse
	if err := json.Unmarshal([]byte(strings.Join(resp.Texts, "")), &llmResp); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", resp.Texts[0]))
	}

	results := make([]*model.Knowledge, 0, len(llmResp.Facts))
	for _, f := range llmResp.Facts {
		if strings.TrimSpace(f.Summary) == "" {
			continue
		}
		results = append(results, &model.Knowledge{
			Title:   strings.TrimSpace(f.Title),
			Summary: strings.TrimSpace(f.Summary),
		})
		if c.maxFacts > 0 && len(results) >= c.maxFacts {
			break
		}
	}

	return results, nil
}

// buildSystemPrompt creates the fixed system prompt for fact extraction
func buildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are a memory assistant. Your task is to read one exchange between a user and an AI assistant and extract facts about the user that are worth remembering in future conversations.\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. Only extract facts stated or clearly implied by the user: preferences, plans, purchases, personal details they chose to share.\n")
	sb.WriteString("2. For each fact, provide:\n")
	sb.WriteString("   - title: A short label (in the same language as the user)\n")
	sb.WriteString("   - summary: A self-contained sentence about the user (in the same language as the user)\n")
	sb.WriteString("3. Do not record general knowledge, the assistant's own statements, or small talk.\n")
	sb.WriteString("4. If nothing is worth remembering, return an empty array.\n")

	return sb.String()
}

// buildUserPrompt renders the exchange to analyze
func buildUserPrompt(exchange model.TurnExchange) string {
	var sb strings.Builder

	sb.WriteString("## User message:\n\n")
	sb.WriteString(exchange.Message)
	sb.WriteString("\n\n## Assistant response:\n\n")
	sb.WriteString(exchange.Response)
	sb.WriteString("\n")

	return sb.String()
}

// buildResponseSchema creates the JSON schema for structured output
func buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "UserFactExtractionResponse",
		Description: "Facts about the user worth remembering",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"facts": {
				Type:        gollem.TypeArray,
				Description: "List of facts about the user",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"title": {
							Type:        gollem.TypeString,
							Description: "A short label for the fact",
						},
						"summary": {
							Type:        gollem.TypeString,
							Description: "A self-contained sentence about the user",
						},
					},
					Required: []string{"title", "summary"},
				},
			},
		},
		Required: []string{"facts"},
	}
}
