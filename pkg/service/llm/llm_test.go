package llm_test

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"ok"}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	session      *mockLLMSession
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	embeddingFn  func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	if c.session != nil {
		return c.session, nil
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.embeddingFn != nil {
		return c.embeddingFn(ctx, dimension, input)
	}
	return nil, nil
}

func composed() []model.PromptMessage {
	return []model.PromptMessage{
		{Role: types.PromptRoleSystem, Content: "Be helpful.\n\nGeneral Knowledge:\nRefunds take 5 days."},
		{Role: types.PromptRoleHistoryUser, Content: "Hi"},
		{Role: types.PromptRoleHistoryModel, Content: "Hello! How can I help?"},
		{Role: types.PromptRoleCurrentUser, Content: "What is the refund policy?"},
	}
}

func TestRenderSession(t *testing.T) {
	t.Run("history is rendered into the system prompt in order", func(t *testing.T) {
		system, input, err := llm.RenderSession(composed())
		gt.NoError(t, err).Required()

		gt.Value(t, input).Equal("What is the refund policy?")
		gt.String(t, system).Contains("Be helpful.")
		gt.String(t, system).Contains("Refunds take 5 days.")
		gt.String(t, system).Contains("[User]: Hi\n[Assistant]: Hello! How can I help?")
	})

	t.Run("no history section without history", func(t *testing.T) {
		system, _, err := llm.RenderSession([]model.PromptMessage{
			{Role: types.PromptRoleSystem, Content: "Be helpful."},
			{Role: types.PromptRoleCurrentUser, Content: "hi"},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, system).Equal("Be helpful.")
	})

	t.Run("current user message is required exactly once", func(t *testing.T) {
		_, _, err := llm.RenderSession([]model.PromptMessage{
			{Role: types.PromptRoleSystem, Content: "Be helpful."},
		})
		gt.Error(t, err)

		_, _, err = llm.RenderSession([]model.PromptMessage{
			{Role: types.PromptRoleCurrentUser, Content: "a"},
			{Role: types.PromptRoleCurrentUser, Content: "b"},
		})
		gt.Error(t, err)
	})
}

func TestCompleter_Complete(t *testing.T) {
	t.Run("sends current user message as input", func(t *testing.T) {
		var received []gollem.Input
		client := &mockLLMClient{session: &mockLLMSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				received = input
				return &gollem.Response{Texts: []string{"Refunds ", "take 5 days."}}, nil
			},
		}}

		completer, err := llm.NewCompleter(client)
		gt.NoError(t, err).Required()

		text, err := completer.Complete(context.Background(), composed())
		gt.NoError(t, err).Required()
		gt.Value(t, text).Equal("Refunds take 5 days.")

		gt.Array(t, received).Length(1).Required()
		gt.Value(t, received[0]).Equal(gollem.Input(gollem.Text("What is the refund policy?")))
	})

	t.Run("propagates generation failure", func(t *testing.T) {
		client := &mockLLMClient{session: &mockLLMSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return nil, goerr.New("quota exceeded")
			},
		}}
		completer, err := llm.NewCompleter(client)
		gt.NoError(t, err).Required()

		_, err = completer.Complete(context.Background(), composed())
		gt.Error(t, err)
	})

	t.Run("empty response is an error", func(t *testing.T) {
		client := &mockLLMClient{session: &mockLLMSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{Texts: []string{"  "}}, nil
			},
		}}
		completer, err := llm.NewCompleter(client)
		gt.NoError(t, err).Required()

		_, err = completer.Complete(context.Background(), composed())
		gt.Bool(t, errors.Is(err, llm.ErrEmptyResponse)).True()
	})

	t.Run("nil client is rejected", func(t *testing.T) {
		_, err := llm.NewCompleter(nil)
		gt.Error(t, err)
	})
}

func TestEmbedder_Embed(t *testing.T) {
	client := &mockLLMClient{
		embeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			out := make([][]float64, len(input))
			for i := range input {
				out[i] = make([]float64, dimension)
				out[i][0] = float64(i) + 0.5
			}
			return out, nil
		},
	}

	embedder, err := llm.NewEmbedder(client, llm.WithDimension(8))
	gt.NoError(t, err).Required()

	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	gt.NoError(t, err).Required()
	gt.Array(t, vectors).Length(2)
	gt.Array(t, vectors[0]).Length(8)
	gt.Value(t, vectors[1][0]).Equal(float32(1.5))

	t.Run("count mismatch is an error", func(t *testing.T) {
		client := &mockLLMClient{
			embeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return [][]float64{}, nil
			},
		}
		embedder, err := llm.NewEmbedder(client)
		gt.NoError(t, err).Required()

		_, err = embedder.Embed(context.Background(), []string{"a"})
		gt.Error(t, err)
	})
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder(t *testing.T) {
	embedder := llm.NewHashEmbedder()
	vectors, err := embedder.Embed(context.Background(), []string{
		"Refund policy",
		"refund POLICY!",
		"shipping address",
		"",
	})
	gt.NoError(t, err).Required()
	gt.Array(t, vectors).Length(4)
	gt.Array(t, vectors[0]).Length(model.EmbeddingDimension)

	gt.Bool(t, cosine(vectors[0], vectors[1]) > 0.999).True()
	gt.Bool(t, cosine(vectors[0], vectors[2]) < 0.999).True()

	for _, v := range vectors[3] {
		gt.Value(t, v).Equal(float32(0))
	}
}

func TestCompleter_WithRealGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set")
	}

	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		t.Skip("TEST_GEMINI_LOCATION not set")
	}

	ctx := context.Background()
	client, err := gemini.New(ctx, projectID, location)
	gt.NoError(t, err).Required()

	completer, err := llm.NewCompleter(client)
	gt.NoError(t, err).Required()

	text, err := completer.Complete(ctx, composed())
	gt.NoError(t, err).Required()
	gt.String(t, text).NotEqual("")

	embedder, err := llm.NewEmbedder(client)
	gt.NoError(t, err).Required()
	vectors, err := embedder.Embed(ctx, []string{"refund policy"})
	gt.NoError(t, err).Required()
	gt.Array(t, vectors[0]).Length(model.EmbeddingDimension)
}
