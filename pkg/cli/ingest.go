package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdIngest() *cli.Command {
	var collection string
	var batchSize int
	var rt runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "collection",
			Aliases:     []string{"c"},
			Usage:       "Destination collection",
			Required:    true,
			Destination: &collection,
		},
		&cli.IntFlag{
			Name:        "batch-size",
			Usage:       "Number of documents embedded per request",
			Value:       100,
			Destination: &batchSize,
		},
	}
	flags = append(flags, rt.Flags()...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Load JSONL documents into a collection",
		ArgsUsage: "<file | gs://bucket/object | ->",
		Description: "Each line is a JSON object with \"content\" and optional \"id\" and \"metadata\". " +
			"Documents with an existing id are replaced.",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("exactly one source is required", goerr.V("args", c.Args().Slice()))
			}
			source := c.Args().First()

			uc, closeBackend, err := rt.build(ctx)
			if err != nil {
				return err
			}
			defer closeBackend()

			r, err := openSource(ctx, source)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, r)

			total, err := ingestDocuments(ctx, uc.Document, collection, r, batchSize)
			if err != nil {
				return goerr.Wrap(err, "failed to ingest documents",
					goerr.V("source", source), goerr.V("ingested", total))
			}

			logging.Default().Info("Ingest completed",
				"source", source,
				"collection", collection,
				"documents", total,
			)
			return nil
		},
	}
}

// openSource opens a local file, stdin ("-") or a Cloud Storage object
func openSource(ctx context.Context, source string) (io.ReadCloser, error) {
	if source == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	if bucket, object, ok := parseGCSURL(source); ok {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage client")
		}
		reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			safe.Close(ctx, client)
			return nil, goerr.Wrap(err, "failed to open object",
				goerr.V("bucket", bucket), goerr.V("object", object))
		}
		return &gcsReader{Reader: reader, client: client}, nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	f, err := os.Open(source)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open file", goerr.V("path", source))
	}
	return f, nil
}

type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (x *gcsReader) Close() error {
	readerErr := x.Reader.Close()
	clientErr := x.client.Close()
	if readerErr != nil {
		return readerErr
	}
	return clientErr
}

func parseGCSURL(source string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(source, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

type documentLine struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// ingestDocuments streams JSONL from r into the collection in batches and
// returns the number of documents written
func ingestDocuments(ctx context.Context, uc *usecase.DocumentUseCase, collection string, r io.Reader, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var (
		batch  []*model.Document
		total  int
		lineNo int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ids, err := uc.Add(ctx, collection, batch)
		if err != nil {
			return err
		}
		total += len(ids)
		logging.From(ctx).Debug("Ingested batch", "collection", collection, "count", len(ids), "total", total)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc documentLine
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return total, goerr.Wrap(err, "failed to decode document", goerr.V("line", lineNo))
		}
		batch = append(batch, &model.Document{
			ID:       model.DocumentID(doc.ID),
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, goerr.Wrap(err, "failed to add documents", goerr.V("line", lineNo))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, goerr.Wrap(err, "failed to read documents")
	}

	if err := flush(); err != nil {
		return total, goerr.Wrap(err, "failed to add documents", goerr.V("line", lineNo))
	}
	return total, nil
}
