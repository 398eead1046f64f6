package facts

import (
	"context"
	"fmt"
)

// RememberArgs are arguments for the remember_fact tool.
type RememberArgs struct {
	Fact     string `json:"fact"`
	Category string `json:"category,omitempty"`
}

// RememberSchema is the JSON schema advertised for remember_fact.
var RememberSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"fact": map[string]any{
			"type":        "string",
			"description": "A short statement about the user worth remembering across sessions",
		},
		"category": map[string]any{
			"type":        "string",
			"description": "Optional grouping such as preference, personal or work",
		},
	},
	"required": []string{"fact"},
}

// Tools exposes fact storage to the model.
type Tools struct {
	store *Store
}

// NewTools creates fact tools using the given store.
func NewTools(store *Store) *Tools {
	return &Tools{store: store}
}

// Remember stores a fact for later recall. sessionID records where the
// fact was learned.
func (t *Tools) Remember(ctx context.Context, sessionID string, args RememberArgs) (map[string]any, error) {
	if args.Fact == "" {
		return nil, fmt.Errorf("fact is required")
	}
	f, err := t.store.Append(ctx, args.Fact, args.Category, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store fact: %w", err)
	}
	return map[string]any{"status": "remembered", "id": f.ID, "fact": f.Fact}, nil
}
