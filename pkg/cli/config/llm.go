package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/service/knowledge"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// LLM holds configuration of the completion and embedding model
type LLM struct {
	provider        string
	geminiProjectID string
	geminiLocation  string
	openaiAPIKey    string
	model           string
}

// Flags returns CLI flags for LLM configuration
func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider [gemini|openai|none]. With none, completions fall back and embeddings use a local hash embedder",
			Category:    "LLM",
			Value:       "gemini",
			Sources:     cli.EnvVars("MNEMOSYNE_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "LLM",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_PROJECT"),
			Destination: &x.geminiProjectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "LLM",
			Value:       "us-central1",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("MNEMOSYNE_OPENAI_API_KEY"),
			Destination: &x.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Model name passed to the provider (provider default when empty)",
			Category:    "LLM",
			Sources:     cli.EnvVars("MNEMOSYNE_LLM_MODEL"),
			Destination: &x.model,
		},
	}
}

// LogAttrs returns log attributes for the LLM configuration
func (x *LLM) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("provider", x.provider),
		slog.String("gemini_project_id", x.geminiProjectID),
		slog.String("gemini_location", x.geminiLocation),
		slog.Bool("openai_api_key_set", x.openaiAPIKey != ""),
		slog.String("model", x.model),
	}
}

// Client creates the gollem client of the configured provider.
// Returns nil when the provider is none.
func (x *LLM) Client(ctx context.Context) (gollem.LLMClient, error) {
	switch x.provider {
	case "gemini":
		if x.geminiProjectID == "" {
			return nil, goerr.Wrap(ErrMissingFlag, "gemini-project is required for the gemini provider",
				goerr.V(FlagKey, "gemini-project"))
		}
		var opts []gemini.Option
		if x.model != "" {
			opts = append(opts, gemini.WithModel(x.model))
		}
		client, err := gemini.New(ctx, x.geminiProjectID, x.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case "openai":
		if x.openaiAPIKey == "" {
			return nil, goerr.Wrap(ErrMissingFlag, "openai-api-key is required for the openai provider",
				goerr.V(FlagKey, "openai-api-key"))
		}
		var opts []openai.Option
		if x.model != "" {
			opts = append(opts, openai.WithModel(x.model))
		}
		client, err := openai.New(ctx, x.openaiAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	case "none", "":
		return nil, nil

	default:
		return nil, goerr.Wrap(ErrUnknownLLMProvider, "invalid llm-provider", goerr.V(ProviderKey, x.provider))
	}
}

// Services bundles what the LLM configuration produces
type Services struct {
	Completer interfaces.Completer
	Embedder  interfaces.Embedder
	Extractor interfaces.KnowledgeExtractor
}

// Configure builds the completer, embedder and knowledge extractor.
// Without a provider the completer is nil and embeddings come from the hash embedder.
func (x *LLM) Configure(ctx context.Context, withExtractor bool) (*Services, error) {
	client, err := x.Client(ctx)
	if err != nil {
		return nil, err
	}

	if client == nil {
		logging.Default().Warn("No LLM provider configured, answers will be the fallback response and embeddings are local hashes")
		return &Services{Embedder: llm.NewHashEmbedder()}, nil
	}

	completer, err := llm.NewCompleter(client)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create completer")
	}
	embedder, err := llm.NewEmbedder(client)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedder")
	}
	svc := &Services{
		Completer: completer,
		Embedder:  embedder,
	}

	if withExtractor {
		extractor, err := knowledge.New(client)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create knowledge extractor")
		}
		svc.Extractor = extractor
	}

	return svc, nil
}
