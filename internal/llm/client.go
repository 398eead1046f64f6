package llm

import "context"

// Client is implemented by every chat-completion backend.
type Client interface {
	// Chat sends one completion request. tools holds function-calling
	// definitions; when empty the request carries no tools field.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks that the runtime is reachable.
	Ping(ctx context.Context) error
}
