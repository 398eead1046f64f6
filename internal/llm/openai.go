package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/localagent/internal/config"
	"github.com/nugget/localagent/internal/httpkit"
)

// OpenAIClient speaks the OpenAI chat-completions dialect, which Ollama
// (/v1), llama.cpp, vLLM and LM Studio all serve.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client for baseURL (for example
// "http://localhost:11434/v1"). timeout bounds each completion call.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(timeout),
			httpkit.WithRetry(2, 500*time.Millisecond),
			httpkit.WithLogger(logger),
		),
		logger: logger,
	}
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a non-streaming completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "chat request", "model", model, "payload", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 2048)}
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	var raw bytes.Buffer
	var decoded chatResponse
	if err := json.NewDecoder(io.TeeReader(resp.Body, &raw)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	c.logger.Log(ctx, config.LevelTrace, "chat response", "model", model, "payload", raw.String())

	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("decode response: no choices")
	}
	choice := decoded.Choices[0]

	out := &ChatResponse{
		Model:        decoded.Model,
		Message:      choice.Message,
		FinishReason: choice.FinishReason,
		InputTokens:  decoded.Usage.PromptTokens,
		OutputTokens: decoded.Usage.CompletionTokens,
	}
	for i := range out.Message.ToolCalls {
		if out.Message.ToolCalls[i].Type == "" {
			out.Message.ToolCalls[i].Type = "function"
		}
	}
	if len(out.Message.ToolCalls) == 0 && len(tools) > 0 {
		if parsed := parseTextToolCalls(out.Message.Content, toolNames(tools)); len(parsed) > 0 {
			out.Message.ToolCalls = parsed
			out.Message.Content = ""
		}
	}

	c.logger.Debug("chat completed",
		"model", model,
		"tool_calls", len(out.Message.ToolCalls),
		"tokens_in", out.InputTokens,
		"tokens_out", out.OutputTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out, nil
}

// Ping lists models, which every compatible runtime serves cheaply.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 512)}
	}
	httpkit.DrainAndClose(resp.Body, 64*1024)
	return nil
}

func (c *OpenAIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
