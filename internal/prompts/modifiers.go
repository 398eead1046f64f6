package prompts

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleClockFormat renders the wall clock inside the schedule
// injection, e.g. "Tuesday 09:30 AM".
const ScheduleClockFormat = "Monday 03:04 PM"

// TaskFocus keeps the model on one task without refusing other requests.
func TaskFocus(task string) string {
	return fmt.Sprintf("You are currently focused on: %s. If asked off-topic, gently redirect back to this task but still be helpful.", task)
}

// LearnMode asks for long-form, educational answers.
func LearnMode() string {
	return "Provide comprehensive, educational, and detailed responses. " +
		"Include steps, examples, reasoning, and practical insights when teaching. Be thorough and explanatory."
}

// RolePersona makes the model answer as the named role.
func RolePersona(role string) string {
	return fmt.Sprintf("You are a %s. Respond with appropriate accuracy and professional standards for this role.", role)
}

// ScheduleUrgency embeds a scheduled task and the current local time.
func ScheduleUrgency(task string, now time.Time) string {
	return fmt.Sprintf("Task scheduled: %s. Current time: %s. Respond with task urgency in mind.",
		task, now.Format(ScheduleClockFormat))
}

// TimeTarget embeds the deadline. Callers pass "unknown" and "N/A" when
// the values are missing.
func TimeTarget(remaining, deadline string) string {
	return fmt.Sprintf("Complete task within: %s. Current deadline: %s. Be efficient and focused.", remaining, deadline)
}

// DebateMode asks for counterarguments.
func DebateMode() string {
	return "You are in DEBATE mode. Provide strong counterarguments, rebuttals, and opposite perspectives. Challenge assumptions."
}

// InterviewMode turns the model into an interviewer.
func InterviewMode() string {
	return "You are a journalist conducting an interview. Ask probing questions, follow-ups, and generate insightful questions. " +
		"Format: Q: [question]\nA: [response]"
}

// ForbiddenWords lists words the reply must not contain.
func ForbiddenWords(words []string) string {
	return fmt.Sprintf("Never use these words in your response: %s. Avoid them completely.", strings.Join(words, ", "))
}

// SharedContent injects material the user wants reasoned over.
func SharedContent(content string) string {
	return fmt.Sprintf("The user shared this content:\n%s\n\nRespond based on this shared content.", content)
}

// ActiveBlock frames a modifier injection under its display name.
func ActiveBlock(name, injection string) string {
	return fmt.Sprintf("[ACTIVE PROMPT: %s]\n%s", name, injection)
}
