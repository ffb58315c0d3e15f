package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/handlers"
	"chat-relay/internal/middleware"
	"chat-relay/internal/websocket"
)

// New builds the HTTP surface. wsHub may be nil when exchange events are
// disabled.
func New(
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	logger *logrus.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/chat", func(r chi.Router) {
		r.Use(middleware.CORS(frontendURL))
		r.Post("/", chatHandler.Chat)
		r.Get("/bots", chatHandler.Bots)
		r.Get("/history/{bot}", chatHandler.History)
	})

	if wsHub != nil {
		r.Get("/ws", wsHub.HandleWebSocket)
	}

	return r
}
