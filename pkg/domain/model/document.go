package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingDimension is the dimension of the embedding vector
// Gemini text-embedding-004 uses 768 dimensions
const EmbeddingDimension = 768

// DocumentID is a UUID-based identifier for a document in a similarity collection
type DocumentID string

// NewDocumentID generates a new UUID v4 DocumentID
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

// Document is the unit written into a similarity collection
type Document struct {
	ID        DocumentID
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Validate checks the document before upsert
func (d *Document) Validate() error {
	if d.Content == "" {
		return goerr.Wrap(ErrEmptyContent, "document content is required", goerr.V("id", d.ID))
	}
	return nil
}

// RetrievedFragment is one result of a similarity query. Dissimilarity is a
// distance: lower means more similar.
type RetrievedFragment struct {
	ID            DocumentID
	Content       string
	Metadata      map[string]any
	Dissimilarity float64
}

// Similarity converts the distance into a similarity score. The conversion
// assumes a normalized distance such as cosine distance.
func (f *RetrievedFragment) Similarity() float64 {
	return 1 - f.Dissimilarity
}

// MetadataString returns the metadata value for key formatted as a string
func (f *RetrievedFragment) MetadataString(key string) (string, bool) {
	v, ok := f.Metadata[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// SimilarityQuery is the input of a similarity index lookup.
// Where restricts results to documents whose metadata equals every given pair.
type SimilarityQuery struct {
	Collection string
	Text       string
	Limit      int
	Where      map[string]string
}

// DeleteSelector chooses documents to delete from a collection
type DeleteSelector struct {
	IDs   []DocumentID
	Where map[string]string
}

// IsEmpty reports whether neither ids nor where is set
func (s DeleteSelector) IsEmpty() bool {
	return len(s.IDs) == 0 && len(s.Where) == 0
}

// MatchMetadata reports whether metadata satisfies every where pair
func MatchMetadata(metadata map[string]any, where map[string]string) bool {
	for k, want := range where {
		v, ok := metadata[k]
		if !ok || v == nil {
			return false
		}
		got, isStr := v.(string)
		if !isStr {
			got = fmt.Sprint(v)
		}
		if got != want {
			return false
		}
	}
	return true
}
