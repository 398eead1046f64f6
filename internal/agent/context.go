package agent

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nugget/localagent/internal/modifier"
	"github.com/nugget/localagent/internal/prompts"
)

// ContextProvider contributes a block to the system message. An empty
// string means there is nothing to add this turn.
type ContextProvider interface {
	GetContext(ctx context.Context) (string, error)
}

// ActivePrompts looks up a session's active modifier.
type ActivePrompts interface {
	Active(ctx context.Context, sessionID string) (*modifier.Modifier, error)
}

// ContextAssembler builds the system message for a turn: the identity
// block, the active modifier's injection, whatever the providers add
// and finally the current-time line.
type ContextAssembler struct {
	identity  string
	prompts   ActivePrompts
	providers []ContextProvider
	logger    *slog.Logger
	now       func() time.Time
}

// NewContextAssembler creates an assembler. prompts may be nil, in
// which case no modifier is ever injected.
func NewContextAssembler(prompts ActivePrompts, logger *slog.Logger, providers ...ContextProvider) *ContextAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextAssembler{
		identity:  identityText(),
		prompts:   prompts,
		providers: providers,
		logger:    logger,
		now:       time.Now,
	}
}

// SetIdentity replaces the identity block. Blank text restores the
// built-in one.
func (a *ContextAssembler) SetIdentity(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = identityText()
	}
	a.identity = text
}

// LoadIdentityFile reads the identity block from path.
func (a *ContextAssembler) LoadIdentityFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	a.SetIdentity(string(data))
	return nil
}

// BuildSystemMessage assembles the system message using the current
// wall clock.
func (a *ContextAssembler) BuildSystemMessage(ctx context.Context, sessionID string) string {
	return a.Build(ctx, sessionID, a.now())
}

// Build assembles the system message as of now. For fixed store
// contents and a fixed now the result is deterministic.
func (a *ContextAssembler) Build(ctx context.Context, sessionID string, now time.Time) string {
	return a.assemble(ctx, a.active(ctx, sessionID), now)
}

// active returns the session's active modifier, or nil when there is
// none or the store cannot be read.
func (a *ContextAssembler) active(ctx context.Context, sessionID string) *modifier.Modifier {
	if a.prompts == nil {
		return nil
	}
	m, err := a.prompts.Active(ctx, sessionID)
	if err != nil {
		a.logger.Warn("active prompt unavailable, continuing without it",
			"session", sessionID, "error", err)
		return nil
	}
	return m
}

func (a *ContextAssembler) assemble(ctx context.Context, active *modifier.Modifier, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(modifier.Inject(a.identity, active, now))

	for _, p := range a.providers {
		block, err := p.GetContext(ctx)
		if err != nil {
			a.logger.Warn("context provider failed, omitting its block", "error", err)
			continue
		}
		if block = strings.TrimSpace(block); block != "" {
			sb.WriteString("\n\n")
			sb.WriteString(block)
		}
	}

	sb.WriteString("\n\n")
	sb.WriteString(prompts.TimeLine(now))
	return sb.String()
}

func identityText() string {
	return prompts.IdentityLock()
}
