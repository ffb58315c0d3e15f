// Package history keeps the per-bot conversation transcripts in memory.
package history

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"chat-relay/internal/models"
)

var ErrUnknownBot = errors.New("unknown bot")

type transcript struct {
	// exchange serializes whole request/reply round trips for one bot.
	exchange sync.Mutex

	mu    sync.RWMutex
	turns []models.Turn
}

// Store maps bot names to their transcripts. The set of bots is fixed at
// construction; only the transcripts change afterwards.
type Store struct {
	transcripts map[string]*transcript
	maxTurns    int
}

type Option func(*Store)

// WithMaxTurns caps every transcript at n turns, dropping the oldest ones.
// Zero or a negative value keeps transcripts unbounded.
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

func NewStore(bots []string, opts ...Option) *Store {
	s := &Store{transcripts: make(map[string]*transcript, len(bots))}
	for _, opt := range opts {
		opt(s)
	}
	for _, bot := range bots {
		name := Normalize(bot)
		if name == "" {
			continue
		}
		s.transcripts[name] = &transcript{}
	}
	return s
}

// Normalize trims and lower-cases a bot name.
func Normalize(bot string) string {
	return strings.ToLower(strings.TrimSpace(bot))
}

func (s *Store) get(bot string) (*transcript, error) {
	t, ok := s.transcripts[bot]
	if !ok {
		return nil, ErrUnknownBot
	}
	return t, nil
}

func (s *Store) Has(bot string) bool {
	_, ok := s.transcripts[bot]
	return ok
}

// Bots returns the registered bot names in sorted order.
func (s *Store) Bots() []string {
	names := make([]string, 0, len(s.transcripts))
	for name := range s.transcripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Append adds turn to the end of the bot's transcript.
func (s *Store) Append(bot string, turn models.Turn) error {
	t, err := s.get(bot)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.turns = append(t.turns, turn)
	if s.maxTurns > 0 && len(t.turns) > s.maxTurns {
		drop := len(t.turns) - s.maxTurns
		t.turns = append([]models.Turn(nil), t.turns[drop:]...)
	}
	return nil
}

// Snapshot returns a copy of the bot's transcript.
func (s *Store) Snapshot(bot string) ([]models.Turn, error) {
	t, err := s.get(bot)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Turn, len(t.turns))
	copy(out, t.turns)
	return out, nil
}

func (s *Store) Len(bot string) int {
	t, err := s.get(bot)
	if err != nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Lock takes the bot's exchange guard. Callers hold it for the whole
// append/provider call/append sequence so concurrent requests to the same bot
// serialize while other bots proceed independently.
func (s *Store) Lock(bot string) (func(), error) {
	t, err := s.get(bot)
	if err != nil {
		return nil, err
	}
	t.exchange.Lock()
	return t.exchange.Unlock, nil
}
