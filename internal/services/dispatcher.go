package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/events"
	"chat-relay/internal/history"
	"chat-relay/internal/logging"
	"chat-relay/internal/models"
	"chat-relay/internal/providers"
)

// Dispatcher validates a chat request, routes it to the bot's provider and
// records both sides of the exchange in the bot's transcript.
type Dispatcher struct {
	store     *history.Store
	registry  *providers.Registry
	publisher events.Publisher
	timeout   time.Duration
	now       func() time.Time
}

// NewDispatcher wires the dispatcher. A nil publisher disables events and a
// zero timeout leaves provider calls bounded only by the request context.
func NewDispatcher(store *history.Store, registry *providers.Registry, publisher events.Publisher, timeout time.Duration) *Dispatcher {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Dispatcher{
		store:     store,
		registry:  registry,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Handle runs one exchange and returns the assistant reply.
//
// The user turn is recorded before the provider is called and is kept even
// when the call fails; only a successful reply appends an assistant turn.
func (d *Dispatcher) Handle(ctx context.Context, req models.ChatRequest) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", errEmptyMessage()
	}

	bot, err := d.resolveBot(req.Bot)
	if err != nil {
		return "", err
	}

	provider, ok := d.registry.Lookup(bot)
	if !ok {
		return "", errNotImplemented(bot)
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"bot":      bot,
		"provider": provider.Name(),
	})

	unlock, err := d.store.Lock(bot)
	if err != nil {
		return "", errUnknownBot(bot, err)
	}
	defer unlock()

	if err := d.store.Append(bot, models.UserTurn(message)); err != nil {
		return "", d.internal(log, "failed to record user turn", err)
	}

	transcript, err := d.store.Snapshot(bot)
	if err != nil {
		return "", d.internal(log, "failed to read transcript", err)
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := d.now()
	reply, err := provider.Reply(callCtx, transcript)
	if err != nil {
		pe := providers.AsProviderError(provider.Name(), err)
		log.WithError(pe.Err).
			WithField("turns", len(transcript)).
			Error("provider call failed")
		return "", &ChatError{
			Kind:    KindProvider,
			Message: fmt.Sprintf("%s provider request failed", pe.Provider),
			Err:     pe,
		}
	}

	if err := d.store.Append(bot, models.AssistantTurn(reply)); err != nil {
		return "", d.internal(log, "failed to record assistant turn", err)
	}

	log.WithFields(logrus.Fields{
		"turns":   len(transcript) + 1,
		"latency": d.now().Sub(start).String(),
	}).Info("exchange recorded")

	d.publish(ctx, log, models.Exchange{
		ID:         uuid.New(),
		Bot:        bot,
		Provider:   provider.Name(),
		Message:    message,
		Reply:      reply,
		TurnCount:  len(transcript) + 1,
		RecordedAt: d.now().UTC(),
	})

	return reply, nil
}

// Bots lists every registered bot and whether a provider serves it.
func (d *Dispatcher) Bots() []models.BotInfo {
	names := d.store.Bots()
	out := make([]models.BotInfo, 0, len(names))
	for _, name := range names {
		_, ok := d.registry.Lookup(name)
		out = append(out, models.BotInfo{Name: name, Implemented: ok})
	}
	return out
}

// History returns the normalized bot name and a copy of its transcript.
func (d *Dispatcher) History(bot string) (string, []models.Turn, error) {
	name, err := d.resolveBot(bot)
	if err != nil {
		return "", nil, err
	}
	turns, err := d.store.Snapshot(name)
	if err != nil {
		return "", nil, errUnknownBot(name, err)
	}
	return name, turns, nil
}

func (d *Dispatcher) resolveBot(raw string) (string, error) {
	bot := history.Normalize(raw)
	if bot == "" {
		return "", errMissingBot()
	}
	if !d.store.Has(bot) {
		return "", errUnknownBot(bot, history.ErrUnknownBot)
	}
	return bot, nil
}

func (d *Dispatcher) internal(log *logrus.Entry, msg string, err error) error {
	log.WithError(err).Error(msg)
	return &ChatError{Kind: KindInternal, Message: "Internal server error", Err: err}
}

func (d *Dispatcher) publish(ctx context.Context, log *logrus.Entry, exchange models.Exchange) {
	// Publishing outlives request cancellation.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, exchange); err != nil {
		log.WithError(err).Warn("failed to publish exchange")
	}
}

// IsChatError reports whether err carries a ChatError of the given kind.
func IsChatError(err error, kind ErrorKind) bool {
	var ce *ChatError
	return errors.As(err, &ce) && ce.Kind == kind
}
