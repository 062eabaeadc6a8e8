package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// FallbackResponse replaces the model answer when completion fails or times out
const FallbackResponse = "I apologize, but I encountered an error trying to generate a response. Please try again later."

// ChatUseCase runs the context assembly pipeline for one chat turn
type ChatUseCase struct {
	retriever      *ContextRetriever
	budgeter       *HistoryBudgeter
	composer       *PromptComposer
	recorder       *TurnRecorder
	completer      interfaces.Completer
	timeout        time.Duration
	asyncRecording bool

	historicalCollection string
}

type ChatOption func(*ChatUseCase)

// WithKnowledgeExtractor stores facts about the user found in each turn into
// the historical tier collection, where later recall requests can find them.
func WithKnowledgeExtractor(extractor interfaces.KnowledgeExtractor) ChatOption {
	return func(uc *ChatUseCase) {
		if extractor == nil {
			return
		}
		WithKnowledgeExtraction(extractor, uc.historicalCollection)(uc.recorder)
	}
}

// WithAsyncRecording records turns in the background after the response is
// built. Pending writes are drained by async.Wait on shutdown.
func WithAsyncRecording(enabled bool) ChatOption {
	return func(uc *ChatUseCase) {
		uc.asyncRecording = enabled
	}
}

func NewChatUseCase(store interfaces.MemoryStore, index interfaces.SimilarityIndex, completer interfaces.Completer, cfg config.ChatConfig, opts ...ChatOption) *ChatUseCase {
	uc := &ChatUseCase{
		retriever: NewContextRetriever(index, cfg),
		budgeter:  NewHistoryBudgeter(store, cfg),
		composer:  NewPromptComposer(cfg.SystemInstruction),
		recorder:  NewTurnRecorder(store, index, cfg.PastQA.Collection),
		completer: completer,
		timeout:   cfg.CompletionTimeout,

		historicalCollection: cfg.Historical.Collection,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessTurn answers message for userID using collection as the general
// knowledge tier. Only request validation errors are returned; every other
// failure degrades the result instead.
func (uc *ChatUseCase) ProcessTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	turnID := model.NewTurnID()
	logger := logging.From(ctx).With("turn_id", turnID, "user_id", req.UserID)
	ctx = logging.With(ctx, logger)

	retrieved := uc.retriever.Retrieve(ctx, req.UserID, req.Message, req.Collection)

	system := uc.composer.SystemMessage(retrieved)
	current := uc.composer.CurrentUserMessage(retrieved, req.Message)
	history := uc.budgeter.Load(ctx, req.UserID, system.Tokens()+current.Tokens())
	messages := uc.composer.Compose(system, history, current)

	response := uc.complete(ctx, messages)

	if uc.asyncRecording {
		async.Dispatch(ctx, "record_turn", func(ctx context.Context) error {
			uc.recorder.Record(ctx, turnID, req.UserID, req.Message, response)
			return nil
		})
	} else {
		// The answer exists by now, so a disconnecting caller must not drop the turn
		uc.recorder.Record(context.WithoutCancel(ctx), turnID, req.UserID, req.Message, response)
	}

	logger.Info("turn processed",
		"history_turns", len(history),
		"fragments", len(retrieved.Fragments()),
	)

	return &model.TurnResult{
		ResponseText:    response,
		SourceFragments: retrieved.Fragments(),
		TurnID:          turnID,
	}, nil
}

func (uc *ChatUseCase) complete(ctx context.Context, messages []model.PromptMessage) string {
	logger := logging.From(ctx)

	if uc.completer == nil {
		logger.Error("completer is not configured")
		return FallbackResponse
	}

	timeout := uc.timeout
	if timeout <= 0 {
		timeout = config.DefaultChatConfig().CompletionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := uc.callCompleter(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			logger.Error("completion timed out", "timeout", timeout, "error", err)
		} else {
			logger.Error("completion failed", "error", err)
		}
		return FallbackResponse
	}
	if text == "" {
		logger.Error("completion returned empty text")
		return FallbackResponse
	}
	return text
}

// callCompleter runs the completion in the caller's goroutine so a returned
// answer is never raced against ctx. The completer is expected to honour ctx.
func (uc *ChatUseCase) callCompleter(ctx context.Context, messages []model.PromptMessage) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in completion", goerr.V("panic", r))
		}
	}()
	return uc.completer.Complete(ctx, messages)
}
