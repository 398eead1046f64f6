// Package modifier implements session-scoped prompt modifiers: the
// nine kinds of behavior override, the injection text each produces,
// the reply post-processing they drive, and their persistence.
package modifier

import (
	"fmt"
	"strings"
)

// Kind is the closed set of modifier types.
type Kind string

const (
	KindTask           Kind = "task"
	KindForbiddenWords Kind = "forbidden_words"
	KindSchedule       Kind = "schedule"
	KindLearn          Kind = "learn"
	KindRoles          Kind = "roles"
	KindRead           Kind = "read"
	KindTimeTarget     Kind = "time_target"
	KindDebate         Kind = "debate"
	KindInterview      Kind = "interview"
)

var allKinds = []Kind{
	KindTask,
	KindForbiddenWords,
	KindSchedule,
	KindLearn,
	KindRoles,
	KindRead,
	KindTimeTarget,
	KindDebate,
	KindInterview,
}

// Kinds returns every known kind in catalog order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is one of the nine known kinds.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a case-insensitive string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown modifier kind %q", s)
	}
	return k, nil
}
