package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chat-relay/internal/logging"
	"chat-relay/internal/models"
	"chat-relay/internal/services"
)

type chatService interface {
	Handle(ctx context.Context, req models.ChatRequest) (string, error)
	Bots() []models.BotInfo
	History(bot string) (string, []models.Turn, error)
}

type ChatHandler struct {
	chat chatService
}

func NewChatHandler(chat chatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.chat.Handle(r.Context(), req)
	if err != nil {
		handleChatError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

func (h *ChatHandler) Bots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.BotsResponse{Bots: h.chat.Bots()})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	bot, turns, err := h.chat.History(chi.URLParam(r, "bot"))
	if err != nil {
		handleChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.HistoryResponse{Bot: bot, Turns: turns})
}

func handleChatError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *services.ChatError
	if errors.As(err, &ce) {
		if ce.Kind.IsClientError() {
			writeError(w, http.StatusBadRequest, ce.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, ce.Message)
		return
	}

	logging.FromContext(r.Context()).WithError(err).Error("unexpected chat failure")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
