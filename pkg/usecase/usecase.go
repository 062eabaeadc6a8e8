package usecase

import (
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
)

type UseCases struct {
	store       interfaces.MemoryStore
	index       interfaces.SimilarityIndex
	completer   interfaces.Completer
	chatConfig  config.ChatConfig
	chatOptions []ChatOption

	Chat     *ChatUseCase
	Context  *ContextUseCase
	Document *DocumentUseCase
}

type Option func(*UseCases)

func WithCompleter(completer interfaces.Completer) Option {
	return func(uc *UseCases) {
		uc.completer = completer
	}
}

func WithChatConfig(cfg config.ChatConfig) Option {
	return func(uc *UseCases) {
		uc.chatConfig = cfg
	}
}

func WithChatOptions(opts ...ChatOption) Option {
	return func(uc *UseCases) {
		uc.chatOptions = append(uc.chatOptions, opts...)
	}
}

func New(store interfaces.MemoryStore, index interfaces.SimilarityIndex, opts ...Option) *UseCases {
	uc := &UseCases{
		store:      store,
		index:      index,
		chatConfig: config.DefaultChatConfig(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Chat = NewChatUseCase(store, index, uc.completer, uc.chatConfig, uc.chatOptions...)
	uc.Context = NewContextUseCase(store)
	uc.Document = NewDocumentUseCase(index)

	return uc
}
