package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/fireconf"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// RunREPLForTest runs an interactive session over the given streams
func RunREPLForTest(ctx context.Context, uc *usecase.UseCases, userID, collection string, in io.Reader, out io.Writer) error {
	return newREPL(uc, userID, collection, in, out).run(ctx)
}

// IngestDocumentsForTest streams JSONL documents into collection
func IngestDocumentsForTest(ctx context.Context, uc *usecase.DocumentUseCase, collection string, r io.Reader, batchSize int) (int, error) {
	return ingestDocuments(ctx, uc, collection, r, batchSize)
}

// ParseGCSURLForTest splits a gs:// URL into bucket and object
func ParseGCSURLForTest(source string) (string, string, bool) {
	return parseGCSURL(source)
}

// GetIndexConfigForTest returns the Firestore index configuration
func GetIndexConfigForTest() *fireconf.Config {
	return getIndexConfig()
}
