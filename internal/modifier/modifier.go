package modifier

import (
	"fmt"
	"strings"
	"time"
)

// State is the activation state of a modifier. Modifiers are never
// physically removed when deactivated.
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
)

// Metadata keys understood by the accessors below.
const (
	MetaWords         = "words"
	MetaDeadline      = "deadline"
	MetaTimeRemaining = "time_remaining"
	MetaContent       = "content"
	MetaSource        = "source"
)

// Modifier is one behavior override attached to a session.
type Modifier struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"type"`
	Name      string         `json:"name"`
	Content   string         `json:"content"`
	State     State          `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Active reports whether the modifier is currently in force.
func (m *Modifier) Active() bool {
	return m != nil && m.State == StateActive
}

// DisplayName is the label used in the active-prompt block.
func (m *Modifier) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return string(m.Kind)
}

// Words returns the forbidden word list. The metadata may hold a JSON
// array or a comma-separated string; blanks are dropped.
func (m *Modifier) Words() []string {
	if m == nil {
		return nil
	}
	var raw []string
	switch v := m.Metadata[MetaWords].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(v, ",")
	}

	words := make([]string, 0, len(raw))
	for _, w := range raw {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// Deadline returns metadata.deadline, or "" when absent.
func (m *Modifier) Deadline() string { return m.meta(MetaDeadline) }

// TimeRemaining returns metadata.time_remaining, or "" when absent.
func (m *Modifier) TimeRemaining() string { return m.meta(MetaTimeRemaining) }

// SharedContent returns the material a read modifier shares with the
// model.
func (m *Modifier) SharedContent() string { return m.meta(MetaContent) }

// Source returns the URL or path a read modifier was created from.
func (m *Modifier) Source() string { return m.meta(MetaSource) }

func (m *Modifier) meta(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	switch v := m.Metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
