package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/searchchat/internal/config"
	"github.com/zhouzirui/searchchat/internal/model/chat"
)

// ErrEmptyReply is returned when a provider answers with nothing usable at all.
var ErrEmptyReply = errors.New("language model returned no choices")

// Request is a structured, role-tagged call to the model. A request without System
// and History is a single-message call (used for synthesis).
type Request struct {
	System  string
	History []chat.Turn
	Message string
}

// LanguageModel is the hosted inference capability.
type LanguageModel interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// NewLanguageModel picks the provider named in cfg.
func NewLanguageModel(ctx context.Context, cfg config.LLMConfig) (LanguageModel, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewArkChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChainModel(ctx, chatModel)
	case config.ProviderOpenAI, "":
		return NewOpenAIModel(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
