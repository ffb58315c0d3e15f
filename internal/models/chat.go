package models

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn represents a single message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }
func SystemTurn(content string) Turn    { return Turn{Role: RoleSystem, Content: content} }

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	Bot     string `json:"bot"`
}

// ChatResponse is the reply from the selected bot.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ErrorResponse is returned for every failed chat call.
type ErrorResponse struct {
	Error string `json:"error"`
}

type BotInfo struct {
	Name        string `json:"name"`
	Implemented bool   `json:"implemented"`
}

type BotsResponse struct {
	Bots []BotInfo `json:"bots"`
}

type HistoryResponse struct {
	Bot   string `json:"bot"`
	Turns []Turn `json:"turns"`
}
