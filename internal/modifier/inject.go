package modifier

import (
	"time"

	"github.com/nugget/localagent/internal/prompts"
)

// Injection returns the text a modifier contributes to the system
// message. Unknown kinds contribute nothing.
func Injection(m *Modifier, now time.Time) string {
	if m == nil {
		return ""
	}
	switch m.Kind {
	case KindTask:
		return prompts.TaskFocus(m.Content)
	case KindLearn:
		return prompts.LearnMode()
	case KindRoles:
		return prompts.RolePersona(m.Content)
	case KindSchedule:
		return prompts.ScheduleUrgency(m.Content, now)
	case KindTimeTarget:
		remaining := m.TimeRemaining()
		if remaining == "" {
			remaining = "unknown"
		}
		deadline := m.Deadline()
		if deadline == "" {
			deadline = "N/A"
		}
		return prompts.TimeTarget(remaining, deadline)
	case KindDebate:
		return prompts.DebateMode()
	case KindInterview:
		return prompts.InterviewMode()
	case KindForbiddenWords:
		return prompts.ForbiddenWords(m.Words())
	case KindRead:
		return prompts.SharedContent(m.SharedContent())
	default:
		return ""
	}
}

// Inject appends the active-prompt block for m to base. It returns base
// unchanged when m is nil or of an unknown kind.
func Inject(base string, m *Modifier, now time.Time) string {
	injection := Injection(m, now)
	if injection == "" {
		return base
	}
	return base + "\n\n" + prompts.ActiveBlock(m.DisplayName(), injection)
}
