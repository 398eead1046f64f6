package facts

import (
	"context"

	"github.com/nugget/localagent/internal/prompts"
)

// ContextProvider renders the memory block of the system message.
type ContextProvider struct {
	store  *Store
	window int
}

// NewContextProvider creates a provider injecting up to window facts.
func NewContextProvider(store *Store, window int) *ContextProvider {
	if window <= 0 {
		window = 20
	}
	return &ContextProvider{store: store, window: window}
}

// GetContext returns the memory block, or "" when nothing is remembered.
func (p *ContextProvider) GetContext(ctx context.Context) (string, error) {
	recent, err := p.store.Recent(ctx, p.window)
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(recent))
	for _, f := range recent {
		lines = append(lines, f.Fact)
	}
	return prompts.MemoryBlock(lines), nil
}
