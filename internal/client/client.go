// Package client calls the relay's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-relay/internal/models"
)

// APIError is a non-2xx answer from the relay.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

type Client struct {
	server     string
	httpClient *http.Client
}

func New(server string, timeout time.Duration) (*Client, error) {
	normalized, err := normalizeServerURL(server)
	if err != nil {
		return nil, err
	}
	return &Client{
		server:     normalized,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// normalizeServerURL adds a scheme when missing and strips any path.
func normalizeServerURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL: %q", server)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

func (c *Client) Chat(ctx context.Context, bot, message string) (string, error) {
	var resp models.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", models.ChatRequest{Message: message, Bot: bot}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (c *Client) Bots(ctx context.Context) ([]models.BotInfo, error) {
	var resp models.BotsResponse
	if err := c.do(ctx, http.MethodGet, "/chat/bots", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Bots, nil
}

func (c *Client) History(ctx context.Context, bot string) ([]models.Turn, error) {
	var resp models.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/chat/history/"+url.PathEscape(bot), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Turns, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp models.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
