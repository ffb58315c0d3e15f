// Package providers adapts a normalized transcript to each LLM vendor's wire
// contract and back into a single reply string.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"chat-relay/internal/models"
)

// DefaultSystemPrompt is prepended by adapters that synthesize a system turn.
const DefaultSystemPrompt = "You are a helpful assistant."

// Provider produces exactly one assistant reply for a transcript.
// Implementations report every failure as *ProviderError.
type Provider interface {
	Name() string
	Reply(ctx context.Context, transcript []models.Turn) (string, error)
}

type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newError(provider string, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Provider: provider, Err: fmt.Errorf(format, args...)}
}

// AsProviderError returns err as a *ProviderError, wrapping it under provider
// when it is not one already.
func AsProviderError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Provider: provider, Err: err}
}

// Registry maps bot names to the adapter serving them.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register binds bot to p. A bot can be bound only once.
func (r *Registry) Register(bot string, p Provider) error {
	if bot == "" {
		return fmt.Errorf("bot name is required")
	}
	if p == nil {
		return fmt.Errorf("provider for %s is nil", bot)
	}
	if _, exists := r.providers[bot]; exists {
		return fmt.Errorf("bot %s already has a provider", bot)
	}
	r.providers[bot] = p
	return nil
}

func (r *Registry) Lookup(bot string) (Provider, bool) {
	p, ok := r.providers[bot]
	return p, ok
}

func (r *Registry) Bots() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
