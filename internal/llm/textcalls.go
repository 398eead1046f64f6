package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

type textCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseTextToolCalls recovers tool calls that small local models write
// into the content instead of the tool_calls field. Recognized shapes:
// a JSON object {"name": ..., "arguments": {...}}, an array of those, or
// either wrapped in <tool_call> tags. Every recovered name must be one
// of offered; otherwise the content is treated as a plain reply.
func parseTextToolCalls(content string, offered map[string]bool) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if start := strings.Index(content, "<tool_call>"); start != -1 {
		content = content[start+len("<tool_call>"):]
		if end := strings.Index(content, "</tool_call>"); end != -1 {
			content = content[:end]
		}
		content = strings.TrimSpace(content)
	}

	var calls []textCall
	if err := json.Unmarshal([]byte(content), &calls); err != nil || len(calls) == 0 {
		var single textCall
		if err := json.Unmarshal([]byte(content), &single); err != nil {
			return nil
		}
		calls = []textCall{single}
	}

	out := make([]ToolCall, 0, len(calls))
	for i, c := range calls {
		if c.Name == "" || !offered[c.Name] {
			return nil
		}
		args := strings.TrimSpace(string(c.Arguments))
		if args == "" || args == "null" {
			args = "{}"
		}
		// Some models double-encode the arguments as a JSON string.
		var asString string
		if err := json.Unmarshal([]byte(args), &asString); err == nil {
			args = asString
		}
		out = append(out, ToolCall{
			ID:       fmt.Sprintf("call_text_%d", i),
			Type:     "function",
			Function: FunctionCall{Name: c.Name, Arguments: args},
		})
	}
	return out
}

// toolNames collects the function names from tool definitions in
// function-calling format.
func toolNames(defs []map[string]any) map[string]bool {
	names := make(map[string]bool, len(defs))
	for _, def := range defs {
		fn, _ := def["function"].(map[string]any)
		if name, _ := fn["name"].(string); name != "" {
			names[name] = true
		}
	}
	return names
}
