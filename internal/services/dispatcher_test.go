package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/history"
	"chat-relay/internal/models"
	"chat-relay/internal/providers"
)

type stubProvider struct {
	name  string
	reply string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls [][]models.Turn
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Reply(ctx context.Context, transcript []models.Turn) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, transcript)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", &providers.ProviderError{Provider: s.name, Err: ctx.Err()}
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubPublisher struct {
	mu        sync.Mutex
	exchanges []models.Exchange
	err       error
}

func (p *stubPublisher) Publish(ctx context.Context, exchange models.Exchange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges = append(p.exchanges, exchange)
	return p.err
}

var testBots = []string{"gpt-4", "claude", "qwen", "mixtral"}

func newTestDispatcher(t *testing.T, bound map[string]providers.Provider) (*Dispatcher, *history.Store, *stubPublisher) {
	t.Helper()
	store := history.NewStore(testBots)
	registry := providers.NewRegistry()
	for bot, p := range bound {
		require.NoError(t, registry.Register(bot, p))
	}
	pub := &stubPublisher{}
	return NewDispatcher(store, registry, pub, time.Second), store, pub
}

func assertAllEmpty(t *testing.T, store *history.Store) {
	t.Helper()
	for _, bot := range store.Bots() {
		assert.Equal(t, 0, store.Len(bot), "history of %s changed", bot)
	}
}

func TestHandle_Success(t *testing.T) {
	gpt := &stubProvider{name: "openai", reply: "Hi there"}
	d, store, pub := newTestDispatcher(t, map[string]providers.Provider{"gpt-4": gpt})

	reply, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hello", Bot: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	turns, _ := store.Snapshot("gpt-4")
	assert.Equal(t, []models.Turn{models.UserTurn("Hello"), models.AssistantTurn("Hi there")}, turns)

	// The provider sees the new user message as part of the transcript.
	require.Equal(t, 1, gpt.callCount())
	assert.Equal(t, []models.Turn{models.UserTurn("Hello")}, gpt.calls[0])

	require.Len(t, pub.exchanges, 1)
	assert.Equal(t, "gpt-4", pub.exchanges[0].Bot)
	assert.Equal(t, "openai", pub.exchanges[0].Provider)
	assert.Equal(t, 2, pub.exchanges[0].TurnCount)
}

func TestHandle_EmptyMessage(t *testing.T) {
	gpt := &stubProvider{name: "openai", reply: "x"}
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{"gpt-4": gpt, "claude": gpt})

	for _, msg := range []string{"", " ", "\t\n", "   \r\n  "} {
		for _, bot := range []string{"claude", "", "unknown-bot", "gpt-4"} {
			_, err := d.Handle(context.Background(), models.ChatRequest{Message: msg, Bot: bot})
			require.Error(t, err)
			assert.True(t, IsChatError(err, KindEmptyMessage), "message %q bot %q: %v", msg, bot, err)
			assert.Equal(t, "Empty message", err.Error())
		}
	}
	assertAllEmpty(t, store)
	assert.Equal(t, 0, gpt.callCount())
}

func TestHandle_MissingBot(t *testing.T) {
	d, store, _ := newTestDispatcher(t, nil)

	for _, bot := range []string{"", "   "} {
		_, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hi", Bot: bot})
		assert.True(t, IsChatError(err, KindMissingBot))
	}
	assertAllEmpty(t, store)
}

func TestHandle_UnknownBot(t *testing.T) {
	gpt := &stubProvider{name: "openai", reply: "x"}
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{"gpt-4": gpt})

	for _, bot := range []string{"unknown-bot", "gpt4", "gemini", "claude-3", "gpt-4 turbo"} {
		_, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hi", Bot: bot})
		require.Error(t, err)
		assert.True(t, IsChatError(err, KindUnknownBot), "bot %q: %v", bot, err)
		assert.Contains(t, err.Error(), "Unknown bot")
		assert.ErrorIs(t, err, history.ErrUnknownBot)
	}
	assertAllEmpty(t, store)
	assert.Equal(t, 0, gpt.callCount())
}

func TestHandle_NotImplemented(t *testing.T) {
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{
		"gpt-4": &stubProvider{name: "openai", reply: "x"},
	})

	_, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hi", Bot: "mixtral"})
	require.Error(t, err)
	assert.True(t, IsChatError(err, KindNotImplemented))
	assert.Equal(t, "Bot not implemented: mixtral", err.Error())
	assertAllEmpty(t, store)
}

func TestHandle_CaseInsensitiveBot(t *testing.T) {
	claude := &stubProvider{name: "anthropic", reply: "ok"}
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{"claude": claude})

	for _, bot := range []string{"Claude", "claude", "  CLAUDE "} {
		reply, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hi", Bot: bot})
		require.NoError(t, err, bot)
		assert.Equal(t, "ok", reply)
	}
	assert.Equal(t, 6, store.Len("claude"))
	assert.Equal(t, 3, claude.callCount())
}

func TestHandle_TrimsStoredMessage(t *testing.T) {
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{
		"claude": &stubProvider{name: "anthropic", reply: "ok"},
	})

	_, err := d.Handle(context.Background(), models.ChatRequest{Message: "  Hello  \n", Bot: "claude"})
	require.NoError(t, err)

	turns, _ := store.Snapshot("claude")
	assert.Equal(t, "Hello", turns[0].Content)
}

func TestHandle_NExchangesAlternate(t *testing.T) {
	claude := &stubProvider{name: "anthropic", reply: "reply"}
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{"claude": claude})

	const n = 5
	messages := []string{"one", "two", "three", "four", "five"}
	for _, msg := range messages {
		_, err := d.Handle(context.Background(), models.ChatRequest{Message: msg, Bot: "claude"})
		require.NoError(t, err)
	}

	turns, _ := store.Snapshot("claude")
	require.Len(t, turns, 2*n)
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, models.RoleUser, turn.Role)
			assert.Equal(t, messages[i/2], turn.Content)
		} else {
			assert.Equal(t, models.RoleAssistant, turn.Role)
		}
	}

	// Each call carries the whole history up to and including the new message.
	for i, call := range claude.calls {
		assert.Len(t, call, 2*i+1)
	}
}

func TestHandle_ProviderFailureKeepsUserTurn(t *testing.T) {
	claude := &stubProvider{
		name: "anthropic",
		err:  &providers.ProviderError{Provider: "anthropic", Err: errors.New("overloaded_error: stack trace here")},
	}
	d, store, pub := newTestDispatcher(t, map[string]providers.Provider{"claude": claude})

	_, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hello", Bot: "claude"})
	require.Error(t, err)
	assert.True(t, IsChatError(err, KindProvider))
	assert.Equal(t, "anthropic provider request failed", err.Error())
	assert.NotContains(t, err.Error(), "stack trace")

	var pe *providers.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "anthropic", pe.Provider)

	turns, _ := store.Snapshot("claude")
	assert.Equal(t, []models.Turn{models.UserTurn("Hello")}, turns)
	assert.Empty(t, pub.exchanges)
}

func TestHandle_PlainErrorBecomesProviderError(t *testing.T) {
	d, _, _ := newTestDispatcher(t, map[string]providers.Provider{
		"qwen": &stubProvider{name: "qwen", err: errors.New("connection refused")},
	})

	_, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hello", Bot: "qwen"})

	var pe *providers.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "qwen", pe.Provider)
	assert.EqualError(t, pe.Err, "connection refused")
}

func TestHandle_Timeout(t *testing.T) {
	slow := &stubProvider{name: "qwen", reply: "late", delay: time.Second}
	store := history.NewStore(testBots)
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register("qwen", slow))
	d := NewDispatcher(store, registry, nil, 20*time.Millisecond)

	_, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hello", Bot: "qwen"})
	require.Error(t, err)
	assert.True(t, IsChatError(err, KindProvider))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, store.Len("qwen"))
}

func TestHandle_PublishFailureDoesNotFailRequest(t *testing.T) {
	d, store, pub := newTestDispatcher(t, map[string]providers.Provider{
		"claude": &stubProvider{name: "anthropic", reply: "ok"},
	})
	pub.err = errors.New("redis down")

	reply, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hi", Bot: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 2, store.Len("claude"))
}

func TestHandle_InterleavedBotsDoNotMix(t *testing.T) {
	mixtral := &stubProvider{name: "mixtral", reply: "from mixtral"}
	claude := &stubProvider{name: "anthropic", reply: "from claude"}
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{"mixtral": mixtral, "claude": claude})

	steps := []models.ChatRequest{
		{Message: "m1", Bot: "mixtral"},
		{Message: "c1", Bot: "claude"},
		{Message: "m2", Bot: "mixtral"},
		{Message: "c2", Bot: "claude"},
	}
	for _, req := range steps {
		_, err := d.Handle(context.Background(), req)
		require.NoError(t, err)
	}

	m, _ := store.Snapshot("mixtral")
	c, _ := store.Snapshot("claude")
	assert.Equal(t, []models.Turn{
		models.UserTurn("m1"), models.AssistantTurn("from mixtral"),
		models.UserTurn("m2"), models.AssistantTurn("from mixtral"),
	}, m)
	assert.Equal(t, []models.Turn{
		models.UserTurn("c1"), models.AssistantTurn("from claude"),
		models.UserTurn("c2"), models.AssistantTurn("from claude"),
	}, c)
	assert.Equal(t, 0, store.Len("gpt-4"))
}

func TestHandle_ConcurrentSameBotSerializes(t *testing.T) {
	claude := &stubProvider{name: "anthropic", reply: "ok", delay: 5 * time.Millisecond}
	d, store, _ := newTestDispatcher(t, map[string]providers.Provider{"claude": claude})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Handle(context.Background(), models.ChatRequest{Message: "hi", Bot: "claude"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	turns, _ := store.Snapshot("claude")
	require.Len(t, turns, 40)
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, models.RoleUser, turn.Role, "turn %d", i)
		} else {
			assert.Equal(t, models.RoleAssistant, turn.Role, "turn %d", i)
		}
	}
}

func TestHandle_DifferentBotsRunInParallel(t *testing.T) {
	release := make(chan struct{})
	blocking := &blockingProvider{release: release, started: make(chan struct{})}
	fast := &stubProvider{name: "openai", reply: "fast"}
	d, _, _ := newTestDispatcher(t, map[string]providers.Provider{"claude": blocking, "gpt-4": fast})

	done := make(chan struct{})
	go func() {
		d.Handle(context.Background(), models.ChatRequest{Message: "slow", Bot: "claude"})
		close(done)
	}()
	<-blocking.started

	reply, err := d.Handle(context.Background(), models.ChatRequest{Message: "quick", Bot: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, "fast", reply)

	close(release)
	<-done
}

type blockingProvider struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingProvider) Name() string { return "anthropic" }

func (b *blockingProvider) Reply(ctx context.Context, transcript []models.Turn) (string, error) {
	close(b.started)
	<-b.release
	return "slow", nil
}

func TestBots(t *testing.T) {
	d, _, _ := newTestDispatcher(t, map[string]providers.Provider{
		"claude": &stubProvider{name: "anthropic"},
		"gpt-4":  &stubProvider{name: "openai"},
	})

	assert.Equal(t, []models.BotInfo{
		{Name: "claude", Implemented: true},
		{Name: "gpt-4", Implemented: true},
		{Name: "mixtral", Implemented: false},
		{Name: "qwen", Implemented: false},
	}, d.Bots())
}

func TestHistory(t *testing.T) {
	d, _, _ := newTestDispatcher(t, map[string]providers.Provider{
		"claude": &stubProvider{name: "anthropic", reply: "ok"},
	})
	_, err := d.Handle(context.Background(), models.ChatRequest{Message: "Hi", Bot: "claude"})
	require.NoError(t, err)

	name, turns, err := d.History(" Claude ")
	require.NoError(t, err)
	assert.Equal(t, "claude", name)
	assert.Len(t, turns, 2)

	_, _, err = d.History("nope")
	assert.True(t, IsChatError(err, KindUnknownBot))

	_, _, err = d.History("")
	assert.True(t, IsChatError(err, KindMissingBot))
}

func TestErrorKind(t *testing.T) {
	assert.True(t, KindEmptyMessage.IsClientError())
	assert.True(t, KindNotImplemented.IsClientError())
	assert.False(t, KindProvider.IsClientError())
	assert.False(t, KindInternal.IsClientError())
	assert.Equal(t, "UnknownBot", KindUnknownBot.String())
	assert.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}
