package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// runtimeConfig gathers the flag groups shared by commands that run the chat pipeline
type runtimeConfig struct {
	chat config.Chat
	llm  config.LLM
	repo config.Repository
}

func (x *runtimeConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.chat.Flags()...)
	flags = append(flags, x.llm.Flags()...)
	flags = append(flags, x.repo.Flags()...)
	return flags
}

// build wires backends, LLM services and use cases. The returned closer
// releases backend connections.
func (x *runtimeConfig) build(ctx context.Context) (*usecase.UseCases, func(), error) {
	logger := logging.Default()

	chatCfg, err := x.chat.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load chat configuration")
	}

	svc, err := x.llm.Configure(ctx, x.chat.ExtractKnowledge())
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure LLM")
	}

	backend, err := x.repo.Configure(ctx, svc.Embedder, chatCfg.MaxHistoryLength)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	logger.Info("Runtime configuration",
		slog.GroupAttrs("chat", x.chat.LogAttrs()...),
		slog.GroupAttrs("llm", x.llm.LogAttrs()...),
		slog.GroupAttrs("repository", x.repo.LogAttrs()...),
	)

	chatOpts := []usecase.ChatOption{
		usecase.WithAsyncRecording(x.chat.AsyncRecording()),
	}
	if x.chat.ExtractKnowledge() {
		if svc.Extractor == nil {
			logger.Warn("Knowledge extraction requested but no LLM provider is configured, skipping")
		} else {
			chatOpts = append(chatOpts, usecase.WithKnowledgeExtractor(svc.Extractor))
			logger.Info("Knowledge extraction enabled", "collection", chatCfg.Historical.Collection)
		}
	}

	uc := usecase.New(backend.Store, backend.Index,
		usecase.WithCompleter(svc.Completer),
		usecase.WithChatConfig(chatCfg),
		usecase.WithChatOptions(chatOpts...),
	)

	return uc, func() { backend.Close(ctx) }, nil
}
