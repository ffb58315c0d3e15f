package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chat-relay/internal/models"
)

const (
	DefaultGeminiModel       = "gemini-1.5-flash"
	DefaultGeminiTemperature = 0.7
)

// GeminiChat replays the transcript as a Gemini chat session and sends the
// latest user turn.
type GeminiChat struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiChat(ctx context.Context, apiKey, model string) (*GeminiChat, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if model == "" {
		model = DefaultGeminiModel
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(DefaultGeminiTemperature)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(DefaultSystemPrompt)}}

	return &GeminiChat{client: client, model: m}, nil
}

func (g *GeminiChat) Name() string { return "gemini" }

func (g *GeminiChat) Close() error {
	return g.client.Close()
}

func (g *GeminiChat) Reply(ctx context.Context, transcript []models.Turn) (string, error) {
	history, prompt, err := geminiHistory(transcript)
	if err != nil {
		return "", AsProviderError(g.Name(), err)
	}

	cs := g.model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", AsProviderError(g.Name(), err)
	}

	text := extractGeminiText(resp)
	if text == "" {
		return "", AsProviderError(g.Name(), errors.New("response contained no text"))
	}
	return text, nil
}

// geminiHistory splits a transcript into prior chat history and the final
// user prompt. System turns are dropped; the model carries its own
// instruction.
func geminiHistory(transcript []models.Turn) ([]*genai.Content, string, error) {
	var turns []models.Turn
	for _, turn := range transcript {
		if turn.Role != models.RoleSystem {
			turns = append(turns, turn)
		}
	}
	if len(turns) == 0 {
		return nil, "", errors.New("transcript is empty")
	}

	last := turns[len(turns)-1]
	if last.Role != models.RoleUser {
		return nil, "", fmt.Errorf("last turn must be from the user, got %s", last.Role)
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, turn := range turns[:len(turns)-1] {
		role := "user"
		if turn.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return history, last.Content, nil
}

// extractGeminiText joins the text parts of the first candidate.
func extractGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return strings.TrimSpace(text.String())
}
