package tools

import "context"

type contextKey string

const sessionIDKey contextKey = "session_id"

// WithSessionID adds the session ID to the context so handlers can
// attribute side effects to the conversation that triggered them.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session ID from the context.
// Returns "" if not set.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
