package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/events"
)

const writeWait = 10 * time.Second

// Hub fans exchange events from Redis pub/sub out to every connected
// websocket client.
type Hub struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}
	redisClient *redis.Client
	upgrader    websocket.Upgrader
	log         *logrus.Logger
}

// NewHub accepts upgrades only from allowedOrigin. An empty origin accepts
// any caller.
func NewHub(redisClient *redis.Client, allowedOrigin string, log *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		redisClient: redisClient,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.register(conn)

	// Reads only detect the disconnect; clients never send anything useful.
	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Run relays pub/sub messages until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.redisClient.PSubscribe(ctx, events.ChannelPattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast([]byte(msg.Payload))
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = struct{}{}
	h.log.WithField("total", len(h.connections)).Info("websocket connected")
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn]; !ok {
		return
	}
	delete(h.connections, conn)
	conn.Close()
	h.log.WithField("total", len(h.connections)).Info("websocket disconnected")
}

// Broadcast writes data to every connection, dropping the ones that fail.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.WithError(err).Debug("dropping websocket client")
			delete(h.connections, conn)
			conn.Close()
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections {
		conn.Close()
		delete(h.connections, conn)
	}
}
