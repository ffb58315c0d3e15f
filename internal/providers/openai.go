package providers

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chat-relay/internal/models"
)

const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIChat is the chat-completion style adapter. It prepends a fixed system
// turn to the stored transcript on every call.
type OpenAIChat struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

// NewOpenAIChat builds the adapter. An empty baseURL uses the public API.
func NewOpenAIChat(apiKey, baseURL, model string) *OpenAIChat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIChat{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		systemPrompt: DefaultSystemPrompt,
	}
}

func (c *OpenAIChat) Name() string { return "openai" }

func (c *OpenAIChat) Reply(ctx context.Context, transcript []models.Turn) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.messages(transcript),
	})
	if err != nil {
		return "", AsProviderError(c.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", AsProviderError(c.Name(), errors.New("response contained no choices"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIChat) messages(transcript []models.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(transcript)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.systemPrompt,
	})
	for _, turn := range transcript {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return msgs
}
