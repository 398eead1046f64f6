// Package memory provides conversation storage: sessions, their turns,
// the folders that group them, and the bounded history view fed to the
// model.
package memory

import (
	"errors"
	"fmt"
	"time"
)

// Roles a turn can carry.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// DefaultFolderID is the folder sessions land in unless told otherwise.
const DefaultFolderID = "default"

var (
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFolderNotFound is returned for unknown folder IDs.
	ErrFolderNotFound = errors.New("folder not found")
)

// Turn is one role-tagged message of a session transcript.
type Turn struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Model      string    `json:"model,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
}

// Session is the metadata of one conversation.
type Session struct {
	ID           string    `json:"session_id"`
	FolderID     string    `json:"folder_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	Archived     bool      `json:"archived,omitempty"`
}

// Folder groups sessions.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sessions  []string  `json:"sessions"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSessionID returns an ID of the form "local-<unix millis>".
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("local-%d", now.UnixMilli())
}

// DefaultTitle names a session after the tail of its ID.
func DefaultTitle(sessionID string) string {
	tail := sessionID
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	return "Session " + tail
}
