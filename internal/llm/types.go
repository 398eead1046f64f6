// Package llm talks to the chat-completion runtime.
package llm

import (
	"fmt"
	"strings"
)

// Message is one entry of a chat-completion request.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured request from the model to run a tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatResponse is the first choice of a completion.
type ChatResponse struct {
	Model        string
	Message      Message
	FinishReason string

	InputTokens  int
	OutputTokens int
}

// StatusError is returned when the runtime answers with a non-2xx
// status. Transport failures are returned as ordinary errors, so
// callers can tell "reachable but refusing" from "unreachable".
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("model runtime returned status %d", e.Code)
	}
	return fmt.Sprintf("model runtime returned status %d: %s", e.Code, body)
}
