package modifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/localagent/internal/sessionlock"
)

// ActivityLogger receives modifier lifecycle notices. Implementations
// must not block.
type ActivityLogger interface {
	Log(sessionID, eventType string, data map[string]any)
}

// SourceResolver turns a read modifier's source (URL or path) into the
// text shared with the model.
type SourceResolver interface {
	Resolve(ctx context.Context, source string) (string, error)
}

// Params describes a modifier to create.
type Params struct {
	Kind     Kind           `json:"type"`
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Manager owns activation and deactivation. Every mutation of a session's
// collection runs under that session's lock, so at most one modifier is
// ever active per session.
type Manager struct {
	store    Store
	activity ActivityLogger
	resolver SourceResolver
	logger   *slog.Logger
	locks    sessionlock.Locker
	now      func() time.Time
}

// NewManager creates a Manager. activity and resolver may be nil.
func NewManager(store Store, activity ActivityLogger, resolver SourceResolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		activity: activity,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns every modifier of the session, active or not.
func (mgr *Manager) List(ctx context.Context, sessionID string) ([]*Modifier, error) {
	return mgr.store.List(ctx, sessionID)
}

// Active returns the session's active modifier, or nil.
func (mgr *Manager) Active(ctx context.Context, sessionID string) (*Modifier, error) {
	return mgr.store.Active(ctx, sessionID)
}

// Create deactivates whatever is active in the session and activates a
// new modifier built from p.
func (mgr *Manager) Create(ctx context.Context, sessionID string, p Params) (*Modifier, error) {
	kind, err := ParseKind(string(p.Kind))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m := &Modifier{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Name:      strings.TrimSpace(p.Name),
		Content:   strings.TrimSpace(p.Content),
		State:     StateActive,
		CreatedAt: mgr.now().UTC(),
		Metadata:  make(map[string]any, len(p.Metadata)),
	}
	for k, v := range p.Metadata {
		m.Metadata[k] = v
	}
	if err := mgr.normalize(ctx, m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	unlock := mgr.locks.Lock(sessionID)
	defer unlock()

	mods, err := mgr.store.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list modifiers: %w", err)
	}

	var replaced []*Modifier
	for _, existing := range mods {
		if existing.Active() {
			existing.State = StateInactive
			replaced = append(replaced, existing)
		}
	}
	mods = append(mods, m)

	if err := mgr.store.Save(ctx, sessionID, mods); err != nil {
		return nil, fmt.Errorf("save modifiers: %w", err)
	}

	for _, r := range replaced {
		mgr.log(sessionID, "prompt_deactivated", map[string]any{
			"prompt_id": r.ID,
			"type":      string(r.Kind),
			"name":      r.Name,
			"reason":    "replaced",
		})
	}
	mgr.log(sessionID, "prompt_activated", map[string]any{
		"prompt_id": m.ID,
		"type":      string(m.Kind),
		"name":      m.Name,
	})

	mgr.logger.Info("prompt modifier activated",
		"session", sessionID,
		"prompt_id", m.ID,
		"type", m.Kind,
		"replaced", len(replaced),
	)
	return m, nil
}

// Deactivate marks a modifier inactive. Deactivating an inactive
// modifier is a no-op.
func (mgr *Manager) Deactivate(ctx context.Context, sessionID, id string) (*Modifier, error) {
	unlock := mgr.locks.Lock(sessionID)
	defer unlock()

	mods, err := mgr.store.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list modifiers: %w", err)
	}

	target := find(mods, id)
	if target == nil {
		return nil, ErrNotFound
	}
	if !target.Active() {
		return target, nil
	}

	target.State = StateInactive
	if err := mgr.store.Save(ctx, sessionID, mods); err != nil {
		return nil, fmt.Errorf("save modifiers: %w", err)
	}

	mgr.log(sessionID, "prompt_deactivated", map[string]any{
		"prompt_id": target.ID,
		"type":      string(target.Kind),
		"name":      target.Name,
	})
	return target, nil
}

// Remove deletes a modifier from the session's collection.
func (mgr *Manager) Remove(ctx context.Context, sessionID, id string) error {
	unlock := mgr.locks.Lock(sessionID)
	defer unlock()

	mods, err := mgr.store.List(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list modifiers: %w", err)
	}

	kept := mods[:0]
	var removed *Modifier
	for _, m := range mods {
		if m.ID == id {
			removed = m
			continue
		}
		kept = append(kept, m)
	}
	if removed == nil {
		return ErrNotFound
	}

	if err := mgr.store.Save(ctx, sessionID, kept); err != nil {
		return fmt.Errorf("save modifiers: %w", err)
	}
	if removed.Active() {
		mgr.log(sessionID, "prompt_deactivated", map[string]any{
			"prompt_id": removed.ID,
			"type":      string(removed.Kind),
			"name":      removed.Name,
			"reason":    "removed",
		})
	}
	return nil
}

// Clear drops every modifier of the session.
func (mgr *Manager) Clear(ctx context.Context, sessionID string) error {
	unlock := mgr.locks.Lock(sessionID)
	defer unlock()
	return mgr.store.Clear(ctx, sessionID)
}

// normalize fills kind-specific metadata from the free-form content so
// the injection and post-processing steps find what they need.
func (mgr *Manager) normalize(ctx context.Context, m *Modifier) error {
	switch m.Kind {
	case KindForbiddenWords:
		if len(m.Words()) == 0 && m.Content != "" {
			m.Metadata[MetaWords] = splitWords(m.Content)
		}
		if len(m.Words()) == 0 {
			return fmt.Errorf("forbidden_words modifier needs at least one word")
		}

	case KindTimeTarget:
		if m.TimeRemaining() == "" && m.Content != "" {
			m.Metadata[MetaTimeRemaining] = m.Content
		}
		if m.Deadline() == "" && m.TimeRemaining() != "" {
			if d, err := parseHumanDuration(m.TimeRemaining()); err == nil {
				m.Metadata[MetaDeadline] = mgr.now().Add(d).Format(time.Kitchen)
			}
		}

	case KindRead:
		if m.SharedContent() != "" {
			break
		}
		if src := m.Source(); src != "" {
			if mgr.resolver == nil {
				return fmt.Errorf("cannot resolve read source %q: no resolver configured", src)
			}
			text, err := mgr.resolver.Resolve(ctx, src)
			if err != nil {
				return fmt.Errorf("resolve read source %q: %w", src, err)
			}
			m.Metadata[MetaContent] = text
			break
		}
		m.Metadata[MetaContent] = m.Content
	}

	if len(m.Metadata) == 0 {
		m.Metadata = nil
	}
	return nil
}

func (mgr *Manager) log(sessionID, eventType string, data map[string]any) {
	if mgr.activity == nil {
		return
	}
	mgr.activity.Log(sessionID, eventType, data)
}

func find(mods []*Modifier, id string) *Modifier {
	for _, m := range mods {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func splitWords(s string) []string {
	var words []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// parseHumanDuration parses "<number> <unit>" such as "45 minutes" or
// "2 hours". Go duration strings ("90m") are accepted too.
func parseHumanDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	parts := strings.Fields(s)
	if len(parts) < 2 {
		return 0, fmt.Errorf("expected '<number> <unit>'")
	}

	var num int
	if _, err := fmt.Sscanf(parts[0], "%d", &num); err != nil {
		return 0, err
	}

	unit := strings.ToLower(parts[1])
	switch {
	case strings.HasPrefix(unit, "second"), unit == "sec", unit == "secs":
		return time.Duration(num) * time.Second, nil
	case strings.HasPrefix(unit, "minute"), unit == "min", unit == "mins":
		return time.Duration(num) * time.Minute, nil
	case strings.HasPrefix(unit, "hour"), unit == "hr", unit == "hrs":
		return time.Duration(num) * time.Hour, nil
	case strings.HasPrefix(unit, "day"):
		return time.Duration(num) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}
}
