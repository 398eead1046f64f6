package tools

import "fmt"

// ErrToolUnavailable is returned by a handler whose backing service is
// not configured (no ElevenLabs key, no Twilio account, no address book).
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available: service not configured", e.ToolName)
}

// ArgumentError reports arguments from the model that do not match the
// tool's declared schema.
type ArgumentError struct {
	ToolName string
	Err      error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.ToolName, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ArgumentError) Unwrap() error {
	return e.Err
}
