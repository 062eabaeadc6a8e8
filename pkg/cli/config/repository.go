package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/repository/firestore"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/repository/redis"
	"github.com/secmon-lab/mnemosyne/pkg/repository/sqlite"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for the memory store and similarity index backends
type Repository struct {
	storeBackend string
	indexBackend string

	redisAddr      string
	redisPassword  string
	redisDB        int
	redisKeyPrefix string

	sqlitePath string

	firestoreProjectID  string
	firestoreDatabaseID string
	firestorePrefix     string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store-backend",
			Usage:       "Memory store backend for user context and chat history [memory|redis|sqlite|firestore]",
			Category:    "Repository",
			Value:       "memory",
			Sources:     cli.EnvVars("MNEMOSYNE_STORE_BACKEND"),
			Destination: &r.storeBackend,
		},
		&cli.StringFlag{
			Name:        "index-backend",
			Usage:       "Similarity index backend for document collections [memory|firestore]",
			Category:    "Repository",
			Value:       "memory",
			Sources:     cli.EnvVars("MNEMOSYNE_INDEX_BACKEND"),
			Destination: &r.indexBackend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port)",
			Category:    "Repository",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_ADDR"),
			Destination: &r.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Repository",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_PASSWORD"),
			Destination: &r.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Repository",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_DB"),
			Destination: &r.redisDB,
		},
		&cli.StringFlag{
			Name:        "redis-key-prefix",
			Usage:       "Prefix prepended to every Redis key",
			Category:    "Repository",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_KEY_PREFIX"),
			Destination: &r.redisKeyPrefix,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file",
			Category:    "Repository",
			Value:       "mnemosyne.db",
			Sources:     cli.EnvVars("MNEMOSYNE_SQLITE_PATH"),
			Destination: &r.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using a firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
			Destination: &r.firestoreProjectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
			Destination: &r.firestoreDatabaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of top-level Firestore collections",
			Category:    "Repository",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.firestorePrefix,
		},
	}
}

// LogAttrs returns log attributes for the repository configuration
func (r *Repository) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("store_backend", r.storeBackend),
		slog.String("index_backend", r.indexBackend),
		slog.String("redis_addr", r.redisAddr),
		slog.Int("redis_db", r.redisDB),
		slog.String("sqlite_path", r.sqlitePath),
		slog.String("firestore_project_id", r.firestoreProjectID),
		slog.String("firestore_database_id", r.firestoreDatabaseID),
	}
}

// Backend is the configured pair of memory store and similarity index
type Backend struct {
	Store   interfaces.MemoryStore
	Index   interfaces.SimilarityIndex
	closers []func() error
}

// Close releases every opened backend connection
func (b *Backend) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		safe.CloseFunc(ctx, "backend", b.closers[i])
	}
}

func (r *Repository) firestoreDatabase() string {
	if r.firestoreDatabaseID == "" {
		return "(default)"
	}
	return r.firestoreDatabaseID
}

// Configure initializes the store and index. A single Firestore client is
// shared when both use Firestore. The caller must Close the backend.
func (r *Repository) Configure(ctx context.Context, embedder interfaces.Embedder, maxHistory int) (*Backend, error) {
	b := &Backend{}
	logger := logging.Default()

	var fs *firestore.Firestore
	openFirestore := func() (*firestore.Firestore, error) {
		if fs != nil {
			return fs, nil
		}
		if r.firestoreProjectID == "" {
			return nil, goerr.Wrap(ErrMissingFlag, "firestore-project-id is required when using firestore backend",
				goerr.V(FlagKey, "firestore-project-id"))
		}
		client, err := firestore.New(ctx, r.firestoreProjectID, r.firestoreDatabase(),
			firestore.WithCollectionPrefix(r.firestorePrefix),
			firestore.WithMaxHistory(maxHistory),
			firestore.WithEmbedder(embedder),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		b.closers = append(b.closers, client.Close)
		fs = client
		logger.Info("Using Firestore repository",
			"project_id", r.firestoreProjectID,
			"database_id", r.firestoreDatabase(),
		)
		return fs, nil
	}

	var mem *memory.Memory
	openMemory := func() *memory.Memory {
		if mem == nil {
			mem = memory.New(embedder, memory.WithMaxHistory(maxHistory))
		}
		return mem
	}

	switch r.storeBackend {
	case "memory":
		logger.Info("Using in-memory store (development mode)")
		b.Store = openMemory().MemoryStore()

	case "redis":
		store, err := redis.New(ctx, r.redisAddr,
			redis.WithPassword(r.redisPassword),
			redis.WithDB(r.redisDB),
			redis.WithKeyPrefix(r.redisKeyPrefix),
			redis.WithMaxHistory(maxHistory),
		)
		if err != nil {
			b.Close(ctx)
			return nil, goerr.Wrap(err, "failed to initialize redis store", goerr.V("addr", r.redisAddr))
		}
		b.closers = append(b.closers, store.Close)
		b.Store = store
		logger.Info("Using Redis store", "addr", r.redisAddr, "db", r.redisDB)

	case "sqlite":
		store, err := sqlite.New(ctx, r.sqlitePath, sqlite.WithMaxHistory(maxHistory))
		if err != nil {
			b.Close(ctx)
			return nil, goerr.Wrap(err, "failed to initialize sqlite store", goerr.V("path", r.sqlitePath))
		}
		b.closers = append(b.closers, store.Close)
		b.Store = store
		logger.Info("Using SQLite store", "path", r.sqlitePath)

	case "firestore":
		client, err := openFirestore()
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.Store = client.MemoryStore()

	default:
		b.Close(ctx)
		return nil, goerr.Wrap(ErrUnknownBackend, "invalid store backend", goerr.V(BackendKey, r.storeBackend))
	}

	switch r.indexBackend {
	case "memory":
		logger.Info("Using in-memory similarity index (development mode)")
		b.Index = openMemory().SimilarityIndex()

	case "firestore":
		client, err := openFirestore()
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.Index = client.SimilarityIndex()

	default:
		b.Close(ctx)
		return nil, goerr.Wrap(ErrUnknownBackend, "invalid index backend", goerr.V(BackendKey, r.indexBackend))
	}

	return b, nil
}
