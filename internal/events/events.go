// Package events publishes recorded chat exchanges for live observers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"chat-relay/internal/models"
)

// ChannelPrefix is followed by the bot name.
const ChannelPrefix = "chat_updates:"

// ChannelPattern matches every bot channel.
const ChannelPattern = ChannelPrefix + "*"

type Publisher interface {
	Publish(ctx context.Context, exchange models.Exchange) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.Exchange) error { return nil }

// RedisPublisher sends exchanges as WSMessage JSON over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, exchange models.Exchange) error {
	data, err := Encode(exchange)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, ChannelPrefix+exchange.Bot, data).Err(); err != nil {
		return fmt.Errorf("failed to publish exchange: %w", err)
	}
	return nil
}

// Encode wraps an exchange in the websocket envelope.
func Encode(exchange models.Exchange) ([]byte, error) {
	data, err := json.Marshal(models.WSMessage{Type: "exchange", Payload: exchange})
	if err != nil {
		return nil, fmt.Errorf("failed to encode exchange: %w", err)
	}
	return data, nil
}
