package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/models"
)

type anthropicRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	System      []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func anthropicServer(t *testing.T, got *anthropicRequest, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestAnthropicMessages_SendsTranscriptAsIs(t *testing.T) {
	var got anthropicRequest
	server := anthropicServer(t, &got, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-haiku-20240307",
		"content": [{"type": "text", "text": "  Bonjour!  "}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 3, "output_tokens": 2}
	}`)
	defer server.Close()

	a := NewAnthropicMessages("test-key", server.URL, "")
	reply, err := a.Reply(context.Background(), []models.Turn{
		models.UserTurn("Hello"),
		models.AssistantTurn("Hi"),
		models.UserTurn("Say hi in French"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour!", reply)

	assert.Equal(t, DefaultAnthropicModel, got.Model)
	assert.Equal(t, DefaultAnthropicMaxTokens, got.MaxTokens)
	assert.InDelta(t, DefaultAnthropicTemperature, got.Temperature, 0.0001)
	assert.Empty(t, got.System, "no system turn is synthesized")
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Hello", got.Messages[0].Content[0].Text)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
}

func TestAnthropicMessages_EmptyContent(t *testing.T) {
	server := anthropicServer(t, nil, http.StatusOK, `{
		"id": "msg_2", "type": "message", "role": "assistant",
		"model": "claude-3-haiku-20240307", "content": [],
		"stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 0}
	}`)
	defer server.Close()

	a := NewAnthropicMessages("test-key", server.URL, "")
	_, err := a.Reply(context.Background(), []models.Turn{models.UserTurn("Hello")})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "anthropic", pe.Provider)
}

func TestAnthropicMessages_APIError(t *testing.T) {
	server := anthropicServer(t, nil, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"messages: at least one message is required"}}`)
	defer server.Close()

	a := NewAnthropicMessages("test-key", server.URL, "")
	_, err := a.Reply(context.Background(), []models.Turn{models.UserTurn("Hello")})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "anthropic", pe.Provider)
}
