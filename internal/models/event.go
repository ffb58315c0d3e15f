package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Exchange is one recorded user/assistant round trip.
type Exchange struct {
	ID         uuid.UUID `json:"id"`
	Bot        string    `json:"bot"`
	Provider   string    `json:"provider"`
	Message    string    `json:"message"`
	Reply      string    `json:"reply"`
	TurnCount  int       `json:"turn_count"`
	RecordedAt time.Time `json:"recorded_at"`
}
