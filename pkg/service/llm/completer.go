package llm

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

//go:embed prompt/session_system.md
var sessionSystemPromptTmpl string

var sessionSystemPrompt = template.Must(template.New("session_system").Parse(sessionSystemPromptTmpl))

// ErrEmptyResponse is returned when the model answers with no text
var ErrEmptyResponse = goerr.New("LLM returned empty response")

type transcriptLine struct {
	Speaker string
	Content string
}

// Completer sends a composed prompt to a gollem LLM client. Every call opens a
// fresh session: the system message and the budgeted history become the
// session system prompt, and the current user message is the only input.
type Completer struct {
	client gollem.LLMClient
}

var _ interfaces.Completer = &Completer{}

// NewCompleter creates a Completer backed by client
func NewCompleter(client gollem.LLMClient) (*Completer, error) {
	if client == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Completer{client: client}, nil
}

func (c *Completer) Complete(ctx context.Context, messages []model.PromptMessage) (string, error) {
	systemPrompt, userInput, err := renderSession(messages)
	if err != nil {
		return "", err
	}

	session, err := c.client.NewSession(ctx, gollem.WithSessionSystemPrompt(systemPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userInput))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content from LLM")
	}
	if resp == nil {
		return "", goerr.Wrap(ErrEmptyResponse, "nil response")
	}

	text := strings.TrimSpace(strings.Join(resp.Texts, ""))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// renderSession splits the composed messages into a system prompt and the
// current user input. Exactly one current-user message is required.
func renderSession(messages []model.PromptMessage) (string, string, error) {
	var (
		instructions []string
		history      []transcriptLine
		userInput    string
		userCount    int
	)

	for _, msg := range messages {
		switch msg.Role {
		case types.PromptRoleSystem:
			instructions = append(instructions, msg.Content)
		case types.PromptRoleHistoryUser:
			history = append(history, transcriptLine{Speaker: "User", Content: msg.Content})
		case types.PromptRoleHistoryModel:
			history = append(history, transcriptLine{Speaker: "Assistant", Content: msg.Content})
		case types.PromptRoleCurrentUser:
			userInput = msg.Content
			userCount++
		default:
			return "", "", goerr.New("unknown prompt role", goerr.V("role", msg.Role))
		}
	}

	if userCount != 1 {
		return "", "", goerr.New("exactly one current user message is required", goerr.V("count", userCount))
	}

	var buf bytes.Buffer
	if err := sessionSystemPrompt.Execute(&buf, struct {
		Instruction string
		History     []transcriptLine
	}{
		Instruction: strings.Join(instructions, "\n\n"),
		History:     history,
	}); err != nil {
		return "", "", goerr.Wrap(err, "failed to render system prompt")
	}

	return strings.TrimSpace(buf.String()), userInput, nil
}
