// Package tools defines the tools available to the agent.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// Handler executes a tool with the raw JSON arguments supplied by the
// model. The returned value is JSON-encoded before it reaches the model.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`
}

// Typed builds a Tool whose handler receives arguments decoded into A.
// Arguments that do not decode are reported as an [*ArgumentError]
// without calling fn.
func Typed[A any](name, description string, schema map[string]any, fn func(ctx context.Context, args A) (any, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args A
			if len(bytes.TrimSpace(raw)) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, &ArgumentError{ToolName: name, Err: err}
				}
			}
			return fn(ctx, args)
		},
	}
}

// Registry holds available tools. It is populated once at startup and
// only read afterwards.
type Registry struct {
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry. Tool names are unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	r.tools[t.Name] = t
	return nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all tools for the LLM in function-calling format,
// sorted by name so requests are stable across runs.
func (r *Registry) Definitions() []map[string]any {
	var result []map[string]any
	for _, name := range r.Names() {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Invoke runs a tool by name and returns the text fed back to the model.
// It never fails: an unknown tool or a failing handler produces a string
// starting with "Error".
func (r *Registry) Invoke(ctx context.Context, name, argsJSON string) (result string) {
	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("tool not found", "tool", name)
		return fmt.Sprintf("Error: Tool '%s' not found.", name)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			result = fmt.Sprintf("Error executing tool '%s': %v", name, p)
		}
	}()

	out, err := tool.Handler(ctx, json.RawMessage(argsJSON))
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("Error executing tool '%s': %s", name, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		r.logger.Warn("tool result not serializable", "tool", name, "error", err)
		return fmt.Sprintf("Error executing tool '%s': %s", name, err)
	}
	r.logger.Debug("tool executed", "tool", name, "result_len", len(data))
	return string(data)
}
