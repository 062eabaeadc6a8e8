package knowledge_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/knowledge"
)

type mockSession struct {
	texts []string
	err   error
	input []gollem.Input
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &gollem.Response{Texts: s.texts}, nil
}

func (s *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockClient struct {
	session  *mockSession
	sessions int
}

func (c *mockClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.sessions++
	return c.session, nil
}

func (c *mockClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func exchange(message, response string) model.TurnExchange {
	return model.TurnExchange{
		TurnID:   "turn-1",
		UserID:   "bob",
		Message:  message,
		Response: response,
	}
}

func TestNew_RequiresLLMClient(t *testing.T) {
	_, err := knowledge.New(nil)
	gt.Value(t, err).NotNil()
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("parses facts from structured output", func(t *testing.T) {
		session := &mockSession{texts: []string{`{"facts":[
			{"title":"Order","summary":"Bob ordered a blue kettle, order #4411."},
			{"title":"Empty","summary":"  "}
		]}`}}
		svc, err := knowledge.New(&mockClient{session: session})
		gt.NoError(t, err).Required()

		facts, err := svc.Extract(ctx, exchange("I ordered a blue kettle, #4411", "Thanks, noted."))
		gt.NoError(t, err).Required()
		gt.Array(t, facts).Length(1).Required()
		gt.Value(t, facts[0].Title).Equal("Order")
		gt.Value(t, facts[0].Summary).Equal("Bob ordered a blue kettle, order #4411.")
	})

	t.Run("caps the number of facts", func(t *testing.T) {
		session := &mockSession{texts: []string{`{"facts":[
			{"title":"a","summary":"one"},
			{"title":"b","summary":"two"},
			{"title":"c","summary":"three"}
		]}`}}
		svc, err := knowledge.New(&mockClient{session: session}, knowledge.WithMaxFacts(2))
		gt.NoError(t, err).Required()

		facts, err := svc.Extract(ctx, exchange("many things", "ok"))
		gt.NoError(t, err).Required()
		gt.Array(t, facts).Length(2)
	})

	t.Run("empty message skips the LLM", func(t *testing.T) {
		client := &mockClient{session: &mockSession{}}
		svc, err := knowledge.New(client)
		gt.NoError(t, err).Required()

		facts, err := svc.Extract(ctx, exchange("   ", "ok"))
		gt.NoError(t, err).Required()
		gt.Value(t, facts).Nil()
		gt.Value(t, client.sessions).Equal(0)
	})

	t.Run("malformed output is an error", func(t *testing.T) {
		svc, err := knowledge.New(&mockClient{session: &mockSession{texts: []string{"not json"}}})
		gt.NoError(t, err).Required()

		_, err = svc.Extract(ctx, exchange("hi", "hello"))
		gt.Error(t, err)
	})

	t.Run("LLM failure is an error", func(t *testing.T) {
		svc, err := knowledge.New(&mockClient{session: &mockSession{err: goerr.New("quota exceeded")}})
		gt.NoError(t, err).Required()

		_, err = svc.Extract(ctx, exchange("hi", "hello"))
		gt.Error(t, err)
	})
}

func TestBuildPrompts(t *testing.T) {
	prompt := knowledge.BuildSystemPrompt()
	gt.String(t, prompt).Contains("title")
	gt.String(t, prompt).Contains("summary")

	user := knowledge.BuildUserPrompt(exchange("I live in Osaka", "Nice city!"))
	gt.String(t, user).Contains("I live in Osaka")
	gt.String(t, user).Contains("Nice city!")
}

func TestExtract_WithRealGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set")
	}

	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		t.Skip("TEST_GEMINI_LOCATION not set")
	}

	ctx := context.Background()
	llmClient, err := gemini.New(ctx, projectID, location)
	gt.NoError(t, err).Required()

	svc, err := knowledge.New(llmClient)
	gt.NoError(t, err).Required()

	facts, err := svc.Extract(ctx, exchange(
		"Please remember that I'm vegetarian and allergic to peanuts.",
		"Got it, I'll keep that in mind for recipe suggestions.",
	))
	gt.NoError(t, err).Required()
	gt.Bool(t, len(facts) > 0).True()
}
