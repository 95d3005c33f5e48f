package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/searchchat/internal/model/chat"
)

// ChainModel runs conversations through a compiled eino chain
// (system prompt, history placeholder, user query) on top of any eino chat model.
type ChainModel struct {
	chatModel model.BaseChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewChainModel compiles the conversation chain for chatModel.
func NewChainModel(ctx context.Context, chatModel model.BaseChatModel) (*ChainModel, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainModel{chatModel: chatModel, chain: runnable}, nil
}

// Complete implements LanguageModel.
func (m *ChainModel) Complete(ctx context.Context, req Request) (Response, error) {
	var (
		msg *schema.Message
		err error
	)

	if req.System == "" && len(req.History) == 0 {
		msg, err = m.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(req.Message)})
	} else {
		msg, err = m.chain.Invoke(ctx, map[string]any{
			"system":  req.System,
			"history": historyMessages(req.History),
			"query":   req.Message,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	return messageResponse(msg)
}

func messageResponse(msg *schema.Message) (Response, error) {
	if msg == nil {
		return nil, ErrEmptyReply
	}
	if strings.TrimSpace(msg.Content) != "" {
		return TextResponse{Content: msg.Content}, nil
	}
	return RawResponse{Raw: msg.String()}, nil
}

func historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}
