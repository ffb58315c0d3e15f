package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"chat-relay/internal/models"
)

const (
	DefaultMaxNewTokens = 200
	NoReplyFallback     = "No reply from model."
)

// InferenceEndpoint posts the flattened transcript as a single prompt to a
// bearer-authenticated text-generation endpoint.
type InferenceEndpoint struct {
	name         string
	url          string
	token        string
	maxNewTokens int
	httpClient   *http.Client
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxNewTokens int `json:"max_new_tokens"`
}

// NewInferenceEndpoint builds an adapter named name posting to url. A nil
// httpClient uses http.DefaultClient.
func NewInferenceEndpoint(name, url, token string, maxNewTokens int, httpClient *http.Client) *InferenceEndpoint {
	if maxNewTokens <= 0 {
		maxNewTokens = DefaultMaxNewTokens
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &InferenceEndpoint{
		name:         name,
		url:          url,
		token:        token,
		maxNewTokens: maxNewTokens,
		httpClient:   httpClient,
	}
}

func (e *InferenceEndpoint) Name() string { return e.name }

func (e *InferenceEndpoint) Reply(ctx context.Context, transcript []models.Turn) (string, error) {
	payload, err := json.Marshal(inferenceRequest{
		Inputs:     FlattenTranscript(transcript),
		Parameters: inferenceParameters{MaxNewTokens: e.maxNewTokens},
	})
	if err != nil {
		return "", newError(e.name, "failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return "", newError(e.name, "failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", newError(e.name, "request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(e.name, "failed reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(e.name, "non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	return extractGeneratedText(e.name, body)
}

// FlattenTranscript renders turns as "role: content" lines in order.
func FlattenTranscript(transcript []models.Turn) string {
	lines := make([]string, 0, len(transcript))
	for _, turn := range transcript {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

// extractGeneratedText reads generated_text from either an object body or the
// list-of-objects shape text-generation endpoints commonly return.
func extractGeneratedText(provider string, body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", newError(provider, "invalid JSON response: %s", truncate(string(body), 400))
	}

	parsed := gjson.ParseBytes(body)
	path := "generated_text"
	if parsed.IsArray() {
		path = "0.generated_text"
	}

	text := parsed.Get(path)
	if !text.Exists() {
		return NoReplyFallback, nil
	}
	return text.String(), nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
