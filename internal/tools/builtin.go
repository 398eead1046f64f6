package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/localagent/internal/contacts"
	"github.com/nugget/localagent/internal/facts"
	"github.com/nugget/localagent/internal/telephony"
)

// Synthesizer renders speech.
type Synthesizer interface {
	Enabled() bool
	Synthesize(ctx context.Context, text, language, voiceID string) ([]byte, error)
}

// Dialer places outbound calls.
type Dialer interface {
	Enabled() bool
	InitiateCall(ctx context.Context, to, language, text string) (*telephony.Call, error)
}

// Directory resolves names to contact details.
type Directory interface {
	Enabled() bool
	Lookup(query string) []contacts.Contact
}

// Builtins are the collaborators behind the built-in tools. Nil fields
// leave the corresponding tool unregistered.
type Builtins struct {
	Speech   Synthesizer
	Calls    Dialer
	Contacts Directory
	Facts    *facts.Tools
}

// RegisterBuiltins adds the built-in tools backed by b.
func (r *Registry) RegisterBuiltins(b Builtins) error {
	var tools []Tool
	if b.Speech != nil {
		tools = append(tools, speechTool(b.Speech))
	}
	if b.Calls != nil {
		tools = append(tools, callTool(b.Calls))
	}
	if b.Contacts != nil {
		tools = append(tools, contactTool(b.Contacts))
	}
	if b.Facts != nil {
		tools = append(tools, rememberTool(b.Facts))
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

type speechArgs struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func speechTool(s Synthesizer) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The text to convert to speech",
			},
			"language": map[string]any{
				"type":        "string",
				"enum":        []string{"en", "ar"},
				"description": "Language code (en for English, ar for Arabic)",
			},
		},
		"required": []string{"text"},
	}
	return Typed("generate_speech", "Convert text to high-quality speech audio.", schema,
		func(ctx context.Context, args speechArgs) (any, error) {
			if strings.TrimSpace(args.Text) == "" {
				return nil, fmt.Errorf("text is required")
			}
			if args.Language == "" {
				args.Language = "en"
			}
			if !s.Enabled() {
				return map[string]any{"status": "failed", "text": args.Text}, nil
			}
			audio, err := s.Synthesize(ctx, args.Text, args.Language, "")
			if err != nil {
				return map[string]any{"status": "failed", "text": args.Text, "error": err.Error()}, nil
			}
			return map[string]any{"status": "success", "text": args.Text, "bytes": len(audio)}, nil
		})
}

type callArgs struct {
	PhoneNumber string `json:"phone_number"`
	TextToSay   string `json:"text_to_say"`
	Language    string `json:"language"`
}

func callTool(d Dialer) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"phone_number": map[string]any{
				"type":        "string",
				"description": "The phone number to call (including country code)",
			},
			"text_to_say": map[string]any{
				"type":        "string",
				"description": "What the AI should say when the person answers",
			},
			"language": map[string]any{
				"type":        "string",
				"enum":        []string{"en", "ar"},
				"description": "Language of the spoken message (default en)",
			},
		},
		"required": []string{"phone_number", "text_to_say"},
	}
	return Typed("make_phone_call", "Initiate an outbound phone call to a specific number.", schema,
		func(ctx context.Context, args callArgs) (any, error) {
			if strings.TrimSpace(args.PhoneNumber) == "" {
				return nil, fmt.Errorf("phone_number is required")
			}
			if !d.Enabled() {
				return nil, &ErrToolUnavailable{ToolName: "make_phone_call"}
			}
			if args.Language == "" {
				args.Language = "en"
			}
			call, err := d.InitiateCall(ctx, args.PhoneNumber, args.Language, args.TextToSay)
			if err != nil {
				return map[string]any{"status": "failed", "call_sid": nil, "error": err.Error()}, nil
			}
			return map[string]any{"status": "initiated", "call_sid": call.SID}, nil
		})
}

type contactArgs struct {
	Name string `json:"name"`
}

func contactTool(dir Directory) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Full or partial name of the person or organization",
			},
		},
		"required": []string{"name"},
	}
	return Typed("lookup_contact", "Look up phone numbers and email addresses in the user's address book by name.", schema,
		func(ctx context.Context, args contactArgs) (any, error) {
			if strings.TrimSpace(args.Name) == "" {
				return nil, fmt.Errorf("name is required")
			}
			if !dir.Enabled() {
				return nil, &ErrToolUnavailable{ToolName: "lookup_contact"}
			}
			matches := dir.Lookup(args.Name)
			if matches == nil {
				matches = []contacts.Contact{}
			}
			return map[string]any{"query": args.Name, "matches": matches}, nil
		})
}

func rememberTool(ft *facts.Tools) Tool {
	return Typed("remember_fact", "Save a durable fact about the user that should be recalled in future sessions.", facts.RememberSchema,
		func(ctx context.Context, args facts.RememberArgs) (any, error) {
			return ft.Remember(ctx, SessionIDFromContext(ctx), args)
		})
}
