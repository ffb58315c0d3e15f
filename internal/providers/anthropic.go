package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"chat-relay/internal/models"
)

const (
	DefaultAnthropicModel       = "claude-3-haiku-20240307"
	DefaultAnthropicMaxTokens   = 1000
	DefaultAnthropicTemperature = 0.7
)

// AnthropicMessages is the message style adapter. Unlike OpenAIChat it sends
// the transcript as stored, without a synthesized system turn.
type AnthropicMessages struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewAnthropicMessages(apiKey, baseURL, model string) *AnthropicMessages {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicMessages{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   DefaultAnthropicMaxTokens,
		temperature: DefaultAnthropicTemperature,
	}
}

func (a *AnthropicMessages) Name() string { return "anthropic" }

func (a *AnthropicMessages) Reply(ctx context.Context, transcript []models.Turn) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
	}
	for _, turn := range transcript {
		switch turn.Role {
		case models.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		case models.RoleSystem:
			// The Messages API takes system text out of band.
			params.System = append(params.System, anthropic.TextBlockParam{Text: turn.Content})
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", AsProviderError(a.Name(), err)
	}
	if len(msg.Content) == 0 {
		return "", AsProviderError(a.Name(), errors.New("response contained no content blocks"))
	}
	return strings.TrimSpace(msg.Content[0].Text), nil
}
