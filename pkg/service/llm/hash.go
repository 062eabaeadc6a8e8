package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// HashEmbedder is a deterministic bag-of-words embedder that needs no model.
// Each lower-cased word is hashed into one dimension and the vector is
// L2-normalized, so identical texts have cosine distance 0 and texts sharing
// no words have distance 1. It is meant for local runs and tests.
type HashEmbedder struct {
	dimension int
}

var _ interfaces.Embedder = &HashEmbedder{}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dimension: model.EmbeddingDimension}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = e.vectorize(text)
	}
	return result, nil
}

func (e *HashEmbedder) vectorize(text string) []float32 {
	vec := make([]float32, e.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
