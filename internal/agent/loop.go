// Package agent implements the conversation engine: it assembles the
// system message, drives the two-round tool-calling exchange with the
// model runtime and post-processes the reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/localagent/internal/activity"
	"github.com/nugget/localagent/internal/llm"
	"github.com/nugget/localagent/internal/memory"
	"github.com/nugget/localagent/internal/modifier"
	"github.com/nugget/localagent/internal/prompts"
	"github.com/nugget/localagent/internal/sessionlock"
	"github.com/nugget/localagent/internal/tools"
	"github.com/nugget/localagent/internal/usage"
)

// ActivityLogger receives the loop's notable events. Log must not block.
type ActivityLogger interface {
	Log(sessionID, eventType string, data map[string]any)
}

// SessionStore creates session metadata on first contact.
type SessionStore interface {
	EnsureSession(ctx context.Context, id string) (*memory.Session, bool, error)
}

// UsageRecorder stores the token counts of each completion.
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) error
}

// Reply is the outcome of one turn. Degraded replies carry a
// user-visible error description in Text and are not persisted.
type Reply struct {
	Text      string   `json:"reply"`
	SessionID string   `json:"session_id"`
	Model     string   `json:"model"`
	OffTopic  bool     `json:"off_topic,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
	ToolCalls []string `json:"tool_calls,omitempty"`
}

// Config wires a [Loop]. LLM, Tools, Assembler and History are
// required; the rest may be left zero.
type Config struct {
	LLM          llm.Client
	Tools        *tools.Registry
	Assembler    *ContextAssembler
	History      *memory.Cache
	Compressor   memory.Compressor
	Sessions     SessionStore
	Activity     ActivityLogger
	Usage        UsageRecorder
	DefaultModel string
	Logger       *slog.Logger
}

// Loop runs conversation turns. Turns on the same session are
// serialized; distinct sessions run in parallel.
type Loop struct {
	llm          llm.Client
	tools        *tools.Registry
	assembler    *ContextAssembler
	history      *memory.Cache
	compressor   memory.Compressor
	sessions     SessionStore
	activity     ActivityLogger
	usage        UsageRecorder
	defaultModel string
	logger       *slog.Logger

	locks sessionlock.Locker
	now   func() time.Time
}

// NewLoop creates a loop from cfg.
func NewLoop(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := cfg.Tools
	if reg == nil {
		reg = tools.NewRegistry(logger)
	}
	comp := cfg.Compressor
	if comp.Threshold == 0 {
		comp = memory.DefaultCompressor()
	}
	return &Loop{
		llm:          cfg.LLM,
		tools:        reg,
		assembler:    cfg.Assembler,
		history:      cfg.History,
		compressor:   comp,
		sessions:     cfg.Sessions,
		activity:     cfg.Activity,
		usage:        cfg.Usage,
		defaultModel: cfg.DefaultModel,
		logger:       logger,
		now:          time.Now,
	}
}

// DefaultModel returns the model used when a turn does not name one.
func (l *Loop) DefaultModel() string {
	return l.defaultModel
}

// Chat runs one turn. Model-runtime failures never surface as errors:
// they produce a degraded reply. The returned error is reserved for
// requests that cannot be processed at all.
func (l *Loop) Chat(ctx context.Context, sessionID, message, model string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.New("message is required")
	}
	now := l.now()
	if sessionID == "" {
		sessionID = memory.NewSessionID(now)
	}
	if model == "" {
		model = l.defaultModel
	}

	unlock := l.locks.Lock(sessionID)
	defer unlock()

	l.ensureSession(ctx, sessionID)

	reply := &Reply{SessionID: sessionID, Model: model}
	active := l.assembler.active(ctx, sessionID)

	if modifier.IsOffTopic(message, active) {
		reply.OffTopic = true
		l.log(sessionID, activity.OffTopicRequest, map[string]any{
			"message":     message,
			"active_task": active.Content,
		})
	}

	history, err := l.history.History(ctx, sessionID)
	if err != nil {
		l.logger.Warn("session history unavailable, continuing without it",
			"session", sessionID, "error", err)
		history = nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    memory.RoleSystem,
		Content: l.assembler.assemble(ctx, active, now),
	})
	for _, t := range l.compressor.Bound(history) {
		messages = append(messages, turnMessage(t))
	}
	messages = append(messages, llm.Message{Role: memory.RoleUser, Content: message})

	l.logger.Info("chat turn started",
		"session", sessionID,
		"model", model,
		"history", len(history),
		"messages", len(messages),
	)

	text, usedModel, calls, err := l.complete(ctx, sessionID, model, messages)
	reply.ToolCalls = calls
	if err != nil {
		reply.Degraded = true
		reply.Text = degradedReply(err)
		l.logger.Error("chat turn failed", "session", sessionID, "model", model, "error", err)
		l.log(sessionID, activity.ModelError, map[string]any{
			"model": model,
			"error": err.Error(),
		})
		return reply, nil
	}
	if usedModel != "" {
		reply.Model = usedModel
	}

	if text == "" {
		l.logger.Warn("model returned an empty reply", "session", sessionID, "model", reply.Model, "tool_calls", len(calls))
		text = prompts.EmptyResponseFallback
	}
	reply.Text = modifier.Redact(text, active)

	finished := l.now()
	err = l.history.Append(ctx, sessionID,
		memory.Turn{Role: memory.RoleUser, Text: message, Timestamp: now},
		memory.Turn{Role: memory.RoleAssistant, Text: reply.Text, Timestamp: finished, Model: reply.Model},
	)
	if err != nil {
		l.logger.Error("failed to persist turn", "session", sessionID, "error", err)
	}

	l.logger.Info("chat turn completed",
		"session", sessionID,
		"model", reply.Model,
		"tool_calls", len(calls),
		"elapsed", finished.Sub(now).Round(time.Millisecond),
	)
	return reply, nil
}

// complete runs the initial completion and, when the model asks for
// tools, executes them in order and runs the final completion without
// tool offers. It returns the trimmed reply text.
func (l *Loop) complete(ctx context.Context, sessionID, model string, messages []llm.Message) (string, string, []string, error) {
	resp, err := l.llm.Chat(ctx, model, messages, l.tools.Definitions())
	if err != nil {
		return "", "", nil, err
	}
	l.recordUsage(ctx, sessionID, usage.KindChat, model, resp)
	if len(resp.Message.ToolCalls) == 0 {
		return strings.TrimSpace(resp.Message.Content), resp.Model, nil, nil
	}

	assistant := resp.Message
	assistant.Role = memory.RoleAssistant
	messages = append(messages, assistant)

	toolCtx := tools.WithSessionID(ctx, sessionID)
	names := make([]string, 0, len(assistant.ToolCalls))
	for _, tc := range assistant.ToolCalls {
		name := tc.Function.Name
		names = append(names, name)

		l.logger.Debug("executing tool call", "session", sessionID, "tool", name, "call_id", tc.ID)
		result := l.tools.Invoke(toolCtx, name, tc.Function.Arguments)
		l.log(sessionID, activity.ToolCalled, map[string]any{
			"tool":    name,
			"call_id": tc.ID,
			"failed":  strings.HasPrefix(result, "Error"),
		})

		messages = append(messages, llm.Message{
			Role:       memory.RoleTool,
			Content:    result,
			Name:       name,
			ToolCallID: tc.ID,
		})
	}

	final, err := l.llm.Chat(ctx, model, messages, nil)
	if err != nil {
		return "", "", names, err
	}
	l.recordUsage(ctx, sessionID, usage.KindToolFinal, model, final)
	return strings.TrimSpace(final.Message.Content), final.Model, names, nil
}

func (l *Loop) recordUsage(ctx context.Context, sessionID, kind, model string, resp *llm.ChatResponse) {
	if l.usage == nil {
		return
	}
	if resp.Model != "" {
		model = resp.Model
	}
	err := l.usage.Record(ctx, usage.Record{
		SessionID:    sessionID,
		Model:        model,
		Kind:         kind,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	})
	if err != nil {
		l.logger.Warn("failed to record token usage", "session", sessionID, "error", err)
	}
}

func (l *Loop) ensureSession(ctx context.Context, sessionID string) {
	if l.sessions == nil {
		return
	}
	_, created, err := l.sessions.EnsureSession(ctx, sessionID)
	if err != nil {
		l.logger.Warn("failed to record session", "session", sessionID, "error", err)
		return
	}
	if created {
		l.log(sessionID, activity.SessionCreated, nil)
	}
}

func (l *Loop) log(sessionID, eventType string, data map[string]any) {
	if l.activity != nil {
		l.activity.Log(sessionID, eventType, data)
	}
}

// degradedReply turns a model-runtime failure into the reply the user
// sees.
func degradedReply(err error) string {
	var se *llm.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("Error: Could not reach local AI runtime (%d)", se.Code)
	}
	return fmt.Sprintf("Error: An unexpected issue occurred during chat (%v)", err)
}

func turnMessage(t memory.Turn) llm.Message {
	return llm.Message{
		Role:       t.Role,
		Content:    t.Text,
		Name:       t.ToolName,
		ToolCallID: t.ToolCallID,
	}
}
