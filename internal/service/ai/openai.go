package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/zhouzirui/searchchat/internal/config"
	"github.com/zhouzirui/searchchat/internal/model/chat"
)

// OpenAIModel talks to any OpenAI-compatible chat completions endpoint (Groq by default).
type OpenAIModel struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIModel builds a client from cfg. Extra request options are appended last,
// which lets tests point the client at a local server.
func NewOpenAIModel(cfg config.LLMConfig, opts ...option.RequestOption) *OpenAIModel {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		base = append(base, option.WithBaseURL(baseURL))
	}

	return &OpenAIModel{
		client:      openai.NewClient(append(base, opts...)...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete implements LanguageModel.
func (m *OpenAIModel) Complete(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.model),
		Messages:    completionMessages(req),
		Temperature: openai.Float(m.temperature),
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(m.maxTokens))
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(completion.Choices) == 0 {
		raw := strings.TrimSpace(completion.RawJSON())
		if raw == "" {
			return nil, ErrEmptyReply
		}
		return RawResponse{Raw: raw}, nil
	}

	message := completion.Choices[0].Message
	if strings.TrimSpace(message.Content) == "" {
		return RawResponse{Raw: message.RawJSON()}, nil
	}
	return TextResponse{Content: message.Content}, nil
}

func completionMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, turn := range req.History {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Text))
		case chat.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		}
	}
	return append(messages, openai.UserMessage(req.Message))
}
