package llm

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Embedder generates embeddings with a gollem LLM client
type Embedder struct {
	client    gollem.LLMClient
	dimension int
}

var _ interfaces.Embedder = &Embedder{}

type EmbedderOption func(*Embedder)

// WithDimension overrides model.EmbeddingDimension
func WithDimension(dim int) EmbedderOption {
	return func(e *Embedder) {
		if dim > 0 {
			e.dimension = dim
		}
	}
}

func NewEmbedder(client gollem.LLMClient, opts ...EmbedderOption) (*Embedder, error) {
	if client == nil {
		return nil, goerr.New("LLM client is required")
	}
	e := &Embedder{client: client, dimension: model.EmbeddingDimension}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings, err := e.client.GenerateEmbedding(ctx, e.dimension, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding", goerr.V("count", len(texts)))
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)), goerr.V("actual", len(embeddings)))
	}

	// Convert float64 to float32
	result := make([][]float32, len(embeddings))
	for i, vec := range embeddings {
		result[i] = make([]float32, len(vec))
		for j, v := range vec {
			result[i][j] = float32(v)
		}
	}
	return result, nil
}
