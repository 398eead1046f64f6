package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(srv.URL+"/v1", "ollama", 5*time.Second, nil)
}

func TestChat_RequestShape(t *testing.T) {
	var got map[string]any
	var auth, path string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"model":"llama3.2","choices":[{"message":{"role":"assistant","content":"  hi  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	})

	resp, err := c.Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "hello"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if path != "/v1/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer ollama" {
		t.Errorf("Authorization = %q", auth)
	}
	if _, ok := got["tools"]; ok {
		t.Error("request with no tools must omit the tools field")
	}
	if got["stream"] != false {
		t.Errorf("stream = %v, want false", got["stream"])
	}
	if resp.Message.Content != "  hi  " || resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("response = %+v", resp)
	}
}

func TestChat_ToolCalls(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","function":{"name":"generate_speech","arguments":"{\"text\":\"hi\"}"}}
		]}}]}`))
	})

	tools := []map[string]any{{"type": "function", "function": map[string]any{"name": "generate_speech"}}}
	resp, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "say hi"}}, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if list, ok := got["tools"].([]any); !ok || len(list) != 1 {
		t.Errorf("tools sent = %v", got["tools"])
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.Message.ToolCalls)
	}
	call := resp.Message.ToolCalls[0]
	if call.ID != "call_1" || call.Type != "function" || call.Function.Name != "generate_speech" || call.Function.Arguments != `{"text":"hi"}` {
		t.Errorf("tool call = %+v", call)
	}
}

func TestChat_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusBadGateway)
	})

	_, err := c.Chat(context.Background(), "m", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusBadGateway || !strings.Contains(se.Body, "model not loaded") {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestChat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOpenAIClient(url, "", time.Second, nil)
	_, err := c.Chat(context.Background(), "m", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Errorf("transport failure reported as status error: %v", err)
	}
}

func TestChat_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	if _, err := c.Chat(context.Background(), "m", nil, nil); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestChat_TextToolCallFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"<tool_call>{\"name\":\"lookup_contact\",\"arguments\":{\"name\":\"Ana\"}}</tool_call>"}}]}`))
	})

	resp, err := c.Chat(context.Background(), "m", nil, lookupTool)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.Content != "" {
		t.Fatalf("response = %+v", resp.Message)
	}
	if got := resp.Message.ToolCalls[0].Function.Arguments; got != `{"name":"Ana"}` {
		t.Errorf("arguments = %q", got)
	}
}

func TestChat_JSONReplyIsNotAToolCall(t *testing.T) {
	const content = `{"name": "Alice", "age": 30}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
		w.Write(body)
	})

	resp, err := c.Chat(context.Background(), "m", nil, lookupTool)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 0 {
		t.Errorf("tool calls = %+v, want none", resp.Message.ToolCalls)
	}
	if resp.Message.Content != content {
		t.Errorf("content = %q, want %q", resp.Message.Content, content)
	}
}

var lookupTool = []map[string]any{{
	"type":     "function",
	"function": map[string]any{"name": "lookup_contact"},
}}

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "plain prose", content: "Sure, here you go.", want: nil},
		{name: "object", content: `{"name":"a","arguments":{"x":1}}`, want: []string{`a {"x":1}`}},
		{name: "array", content: `[{"name":"a"},{"name":"b","arguments":{}}]`, want: []string{"a {}", "b {}"}},
		{name: "string arguments", content: `{"name":"a","arguments":"{\"x\":1}"}`, want: []string{`a {"x":1}`}},
		{name: "missing name", content: `{"arguments":{}}`, want: nil},
		{name: "name not offered", content: `{"name":"Alice","age":30}`, want: nil},
		{name: "one of many not offered", content: `[{"name":"a"},{"name":"c"}]`, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTextToolCalls(tt.content, map[string]bool{"a": true, "b": true})
			if len(got) != len(tt.want) {
				t.Fatalf("got %d calls, want %d", len(got), len(tt.want))
			}
			for i, call := range got {
				if s := call.Function.Name + " " + call.Function.Arguments; s != tt.want[i] {
					t.Errorf("call %d = %q, want %q", i, s, tt.want[i])
				}
			}
		})
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestStatusError_Message(t *testing.T) {
	if got := (&StatusError{Code: 503}).Error(); got != "model runtime returned status 503" {
		t.Errorf("Error() = %q", got)
	}
}
