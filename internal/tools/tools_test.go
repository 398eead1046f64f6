package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nugget/localagent/internal/contacts"
	"github.com/nugget/localagent/internal/database"
	"github.com/nugget/localagent/internal/facts"
	"github.com/nugget/localagent/internal/telephony"
)

type echoArgs struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func echoTool() Tool {
	return Typed("echo", "Echo text back.", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []string{"text"},
	}, func(_ context.Context, a echoArgs) (any, error) {
		if a.Text == "boom" {
			return nil, errors.New("exploded")
		}
		return map[string]any{"text": a.Text, "count": a.Count}, nil
	})
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(echoTool()); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(echoTool()); err == nil {
		t.Fatal("duplicate Register should fail")
	}
	if err := r.Register(Tool{Name: "nohandler"}); err == nil {
		t.Fatal("Register without handler should fail")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestDefinitions_FunctionFormatSorted(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		tool := echoTool()
		tool.Name = name
		if err := r.Register(tool); err != nil {
			t.Fatal(err)
		}
	}

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("len = %d, want 3", len(defs))
	}
	var names []string
	for _, d := range defs {
		if d["type"] != "function" {
			t.Errorf("type = %v, want function", d["type"])
		}
		fn := d["function"].(map[string]any)
		names = append(names, fn["name"].(string))
		if fn["parameters"] == nil {
			t.Errorf("%s has no parameters", fn["name"])
		}
	}
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("order = %v", names)
	}
	if strings.Join(r.Names(), ",") != "alpha,mid,zeta" {
		t.Errorf("Names = %v", r.Names())
	}
}

func TestDefinitions_EmptyRegistry(t *testing.T) {
	if defs := NewRegistry(nil).Definitions(); defs != nil {
		t.Errorf("Definitions on empty registry = %v, want nil", defs)
	}
}

func TestInvoke(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(echoTool()); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Tool{
		Name: "panics",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			panic("kaboom")
		},
	}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		tool     string
		args     string
		want     string
		wantPref string
	}{
		{name: "success", tool: "echo", args: `{"text":"hi","count":2}`, want: `{"count":2,"text":"hi"}`},
		{name: "empty args", tool: "echo", args: ``, want: `{"count":0,"text":""}`},
		{name: "unknown tool", tool: "nonexistent", args: `{}`, want: `Error: Tool 'nonexistent' not found.`},
		{name: "handler error", tool: "echo", args: `{"text":"boom"}`, want: `Error executing tool 'echo': exploded`},
		{name: "bad json", tool: "echo", args: `{"text":`, wantPref: `Error executing tool 'echo': invalid arguments for echo`},
		{name: "wrong type", tool: "echo", args: `{"count":"two"}`, wantPref: `Error executing tool 'echo': invalid arguments`},
		{name: "panic contained", tool: "panics", args: `{}`, want: `Error executing tool 'panics': kaboom`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Invoke(context.Background(), tt.tool, tt.args)
			if tt.want != "" && got != tt.want {
				t.Errorf("Invoke = %q, want %q", got, tt.want)
			}
			if tt.wantPref != "" && !strings.HasPrefix(got, tt.wantPref) {
				t.Errorf("Invoke = %q, want prefix %q", got, tt.wantPref)
			}
		})
	}
}

func TestInvoke_UnknownToolStartsWithError(t *testing.T) {
	got := NewRegistry(nil).Invoke(context.Background(), "nonexistent", "{}")
	if !strings.HasPrefix(got, "Error:") {
		t.Errorf("Invoke = %q, want prefix Error:", got)
	}
}

func TestSessionIDContext(t *testing.T) {
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context = %q", got)
	}
	ctx := WithSessionID(context.Background(), "local-1")
	if got := SessionIDFromContext(ctx); got != "local-1" {
		t.Errorf("SessionIDFromContext = %q", got)
	}
}

func TestArgumentError_Unwrap(t *testing.T) {
	inner := errors.New("bad")
	err := error(&ArgumentError{ToolName: "x", Err: inner})
	if !errors.Is(err, inner) {
		t.Error("ArgumentError should unwrap to its cause")
	}
	var ae *ArgumentError
	if !errors.As(err, &ae) || ae.ToolName != "x" {
		t.Errorf("errors.As = %+v", ae)
	}
}

type fakeSpeech struct {
	enabled bool
	err     error
	calls   []string
}

func (f *fakeSpeech) Enabled() bool { return f.enabled }

func (f *fakeSpeech) Synthesize(_ context.Context, text, language, _ string) ([]byte, error) {
	f.calls = append(f.calls, language+":"+text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3"), nil
}

type fakeDialer struct {
	enabled bool
	to      string
	text    string
}

func (f *fakeDialer) Enabled() bool { return f.enabled }

func (f *fakeDialer) InitiateCall(_ context.Context, to, _, text string) (*telephony.Call, error) {
	f.to, f.text = to, text
	return &telephony.Call{SID: "CA9", Status: "queued", To: to}, nil
}

type fakeDirectory struct{}

func (fakeDirectory) Enabled() bool { return true }

func (fakeDirectory) Lookup(q string) []contacts.Contact {
	if strings.EqualFold(q, "alice") {
		return []contacts.Contact{{Name: "Alice", Phones: []string{"+15551230001"}}}
	}
	return nil
}

func TestBuiltins(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store, err := facts.NewStore(db)
	if err != nil {
		t.Fatal(err)
	}

	speech := &fakeSpeech{enabled: true}
	dialer := &fakeDialer{enabled: true}
	r := NewRegistry(nil)
	if err := r.RegisterBuiltins(Builtins{
		Speech:   speech,
		Calls:    dialer,
		Contacts: fakeDirectory{},
		Facts:    facts.NewTools(store),
	}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	want := "generate_speech,lookup_contact,make_phone_call,remember_fact"
	if got := strings.Join(r.Names(), ","); got != want {
		t.Fatalf("Names = %s, want %s", got, want)
	}

	ctx := WithSessionID(context.Background(), "local-42")

	t.Run("generate_speech", func(t *testing.T) {
		got := r.Invoke(ctx, "generate_speech", `{"text":"hello"}`)
		if got != `{"bytes":3,"status":"success","text":"hello"}` {
			t.Errorf("result = %s", got)
		}
		if speech.calls[0] != "en:hello" {
			t.Errorf("synth call = %q, want default language en", speech.calls[0])
		}
	})

	t.Run("generate_speech failure", func(t *testing.T) {
		speech.err = errors.New("quota")
		defer func() { speech.err = nil }()
		got := r.Invoke(ctx, "generate_speech", `{"text":"hello","language":"ar"}`)
		if !strings.Contains(got, `"status":"failed"`) {
			t.Errorf("result = %s", got)
		}
	})

	t.Run("make_phone_call", func(t *testing.T) {
		got := r.Invoke(ctx, "make_phone_call", `{"phone_number":"+15551230001","text_to_say":"Dinner at 7"}`)
		if got != `{"call_sid":"CA9","status":"initiated"}` {
			t.Errorf("result = %s", got)
		}
		if dialer.to != "+15551230001" || dialer.text != "Dinner at 7" {
			t.Errorf("dialer got to=%q text=%q", dialer.to, dialer.text)
		}
	})

	t.Run("make_phone_call unavailable", func(t *testing.T) {
		dialer.enabled = false
		defer func() { dialer.enabled = true }()
		got := r.Invoke(ctx, "make_phone_call", `{"phone_number":"+1","text_to_say":"x"}`)
		if !strings.HasPrefix(got, "Error executing tool 'make_phone_call'") {
			t.Errorf("result = %s", got)
		}
	})

	t.Run("lookup_contact", func(t *testing.T) {
		got := r.Invoke(ctx, "lookup_contact", `{"name":"alice"}`)
		if !strings.Contains(got, `"+15551230001"`) {
			t.Errorf("result = %s", got)
		}
		got = r.Invoke(ctx, "lookup_contact", `{"name":"zed"}`)
		if !strings.Contains(got, `"matches":[]`) {
			t.Errorf("no-match result = %s", got)
		}
	})

	t.Run("remember_fact", func(t *testing.T) {
		got := r.Invoke(ctx, "remember_fact", `{"fact":"Prefers tea","category":"preference"}`)
		if !strings.Contains(got, `"status":"remembered"`) {
			t.Fatalf("result = %s", got)
		}
		recent, err := store.Recent(context.Background(), 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recent) != 1 || recent[0].SourceSession != "local-42" || recent[0].Category != "preference" {
			t.Errorf("stored = %+v", recent)
		}
	})
}
