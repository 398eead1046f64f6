package memory

import (
	"context"
	"fmt"
	"sync"
)

// TurnStore is the durable side of the [Cache].
type TurnStore interface {
	LoadTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	AppendTurn(ctx context.Context, sessionID string, t Turn) (Turn, error)
}

// Cache keeps each touched session's recent turns in memory. A session
// is hydrated from the store the first time it is read, loading only
// the last hydrateLimit turns; later appends write through.
type Cache struct {
	store        TurnStore
	hydrateLimit int

	mu       sync.Mutex
	sessions map[string][]Turn
}

// NewCache creates a cache over store.
func NewCache(store TurnStore, hydrateLimit int) *Cache {
	if hydrateLimit <= 0 {
		hydrateLimit = 40
	}
	return &Cache{
		store:        store,
		hydrateLimit: hydrateLimit,
		sessions:     make(map[string][]Turn),
	}
}

// History returns a copy of the session's cached turns.
func (c *Cache) History(ctx context.Context, sessionID string) ([]Turn, error) {
	c.mu.Lock()
	turns, ok := c.sessions[sessionID]
	c.mu.Unlock()

	if !ok {
		loaded, err := c.store.LoadTurns(ctx, sessionID, c.hydrateLimit)
		if err != nil {
			return nil, fmt.Errorf("hydrate %s: %w", sessionID, err)
		}
		c.mu.Lock()
		// Another caller may have hydrated while we were loading.
		if existing, ok := c.sessions[sessionID]; ok {
			loaded = existing
		} else {
			c.sessions[sessionID] = loaded
		}
		turns = loaded
		c.mu.Unlock()
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Append persists turns in order and adds them to the cached history.
// It stops at the first store error; turns already written stay cached.
func (c *Cache) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if _, err := c.History(ctx, sessionID); err != nil {
		return err
	}
	for _, t := range turns {
		saved, err := c.store.AppendTurn(ctx, sessionID, t)
		if err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
		c.mu.Lock()
		c.sessions[sessionID] = append(c.sessions[sessionID], saved)
		c.mu.Unlock()
	}
	return nil
}

// Forget drops a session from the cache.
func (c *Cache) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
