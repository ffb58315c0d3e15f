package services

import "fmt"

type ErrorKind int

const (
	KindEmptyMessage ErrorKind = iota + 1
	KindMissingBot
	KindUnknownBot
	KindNotImplemented
	KindProvider
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindEmptyMessage:
		return "EmptyMessage"
	case KindMissingBot:
		return "MissingBot"
	case KindUnknownBot:
		return "UnknownBot"
	case KindNotImplemented:
		return "NotImplemented"
	case KindProvider:
		return "ProviderError"
	case KindInternal:
		return "Internal"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// IsClientError reports whether the caller can fix the request.
func (k ErrorKind) IsClientError() bool {
	switch k {
	case KindEmptyMessage, KindMissingBot, KindUnknownBot, KindNotImplemented:
		return true
	}
	return false
}

// ChatError is what the dispatcher returns. Message is safe to show to the
// caller; Err keeps the underlying cause for logs.
type ChatError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ChatError) Error() string { return e.Message }

func (e *ChatError) Unwrap() error { return e.Err }

func errEmptyMessage() *ChatError {
	return &ChatError{Kind: KindEmptyMessage, Message: "Empty message"}
}

func errMissingBot() *ChatError {
	return &ChatError{Kind: KindMissingBot, Message: "Bot name is required"}
}

func errUnknownBot(bot string, cause error) *ChatError {
	return &ChatError{Kind: KindUnknownBot, Message: fmt.Sprintf("Unknown bot: %s", bot), Err: cause}
}

func errNotImplemented(bot string) *ChatError {
	return &ChatError{Kind: KindNotImplemented, Message: fmt.Sprintf("Bot not implemented: %s", bot)}
}
