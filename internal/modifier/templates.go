package modifier

// Field is one input a template asks the user for.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
}

// Template describes how a client builds a modifier of one kind.
type Template struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Kind        Kind    `json:"type"`
	Fields      []Field `json:"fields"`
}

func textField(name, placeholder string) []Field {
	return []Field{{Name: name, Type: "text", Placeholder: placeholder}}
}

// Templates returns the catalog of modifier templates, one per kind.
func Templates() []Template {
	return []Template{
		{ID: "task", Name: "Task Focus", Description: "Stay focused on one specific task",
			Kind: KindTask, Fields: textField("task", "What task to focus on?")},
		{ID: "learn", Name: "Learning Mode", Description: "Get comprehensive educational answers",
			Kind: KindLearn, Fields: textField("topic", "What to learn about?")},
		{ID: "roles", Name: "Roles", Description: "Act as a specific role (doctor, journalist, etc.)",
			Kind: KindRoles, Fields: textField("role", "What role? (doctor, teacher, journalist, etc.)")},
		{ID: "schedule", Name: "Schedule", Description: "Schedule a task with time information",
			Kind: KindSchedule, Fields: textField("schedule", "When? (e.g., 'Monday 9am')")},
		{ID: "time_target", Name: "Time Target", Description: "Complete task within a deadline",
			Kind: KindTimeTarget, Fields: textField("duration", "How long? (e.g., '1 hour', '30 minutes')")},
		{ID: "forbidden_words", Name: "Forbidden Words", Description: "Prohibit specific words from responses",
			Kind: KindForbiddenWords, Fields: textField("words", "Words to avoid (comma-separated)")},
		{ID: "debate", Name: "Debate", Description: "Get counterarguments and rebuttals",
			Kind: KindDebate, Fields: []Field{}},
		{ID: "interview", Name: "Interview", Description: "Role-play as a journalist",
			Kind: KindInterview, Fields: textField("topic", "What to interview about?")},
		{ID: "read", Name: "Read", Description: "Read and analyze files, folders, or links",
			Kind: KindRead, Fields: textField("source", "File path, folder, or URL")},
	}
}
