// Package dashboard serves the dashboard layout document and the usage
// counters shown next to it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nugget/localagent/internal/activity"
	"github.com/nugget/localagent/internal/opstate"
)

const (
	stateNamespace = "dashboard"
	stateKey       = "config"
)

// Config is the user-editable dashboard layout.
type Config struct {
	Widgets          map[string]bool `json:"widgets"`
	TaskList         []string        `json:"task_list"`
	Notes            string          `json:"notes"`
	ExcludeFirstTask bool            `json:"exclude_first_task"`
}

// DefaultConfig is stored the first time the dashboard is read.
func DefaultConfig() Config {
	return Config{
		Widgets: map[string]bool{
			"recent_sessions": true,
			"active_prompts":  true,
			"activity_feed":   true,
			"recordings":      true,
			"task_list":       true,
		},
		TaskList: []string{},
		Notes:    "Welcome to LocalAgent Dashboard",
	}
}

// Stats are the headline counters.
type Stats struct {
	TotalSessions   int `json:"totalSessions"`
	TotalMessages   int `json:"totalMessages"`
	TotalRecordings int `json:"totalRecordings"`
	ActivePrompts   int `json:"activePrompts"`
}

// Counters supplies the numbers behind [Stats].
type Counters interface {
	CountSessions(ctx context.Context) (int, error)
	CountAllTurns(ctx context.Context) (int, error)
}

// PromptCounter counts sessions with an active modifier.
type PromptCounter interface {
	CountActiveSessions(ctx context.Context) (int, error)
}

// EventCounter counts logged activity events.
type EventCounter interface {
	CountSince(ctx context.Context, eventType string, t time.Time) (int, error)
}

// Service reads and writes the dashboard.
type Service struct {
	state    *opstate.Store
	sessions Counters
	prompts  PromptCounter
	events   EventCounter
}

// NewService creates a dashboard service.
func NewService(state *opstate.Store, sessions Counters, prompts PromptCounter, events EventCounter) *Service {
	return &Service{state: state, sessions: sessions, prompts: prompts, events: events}
}

// Config returns the stored layout, saving [DefaultConfig] on first use.
func (s *Service) Config(ctx context.Context) (Config, error) {
	var cfg Config
	err := s.state.GetJSON(ctx, stateNamespace, stateKey, &cfg)
	if errors.Is(err, opstate.ErrNotFound) {
		cfg = DefaultConfig()
		if err := s.state.SetJSON(ctx, stateNamespace, stateKey, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetConfig replaces the stored layout.
func (s *Service) SetConfig(ctx context.Context, cfg Config) error {
	if cfg.Widgets == nil {
		cfg.Widgets = DefaultConfig().Widgets
	}
	if cfg.TaskList == nil {
		cfg.TaskList = []string{}
	}
	return s.state.SetJSON(ctx, stateNamespace, stateKey, cfg)
}

// Stats gathers the counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.TotalSessions, err = s.sessions.CountSessions(ctx); err != nil {
		return Stats{}, fmt.Errorf("count sessions: %w", err)
	}
	if st.TotalMessages, err = s.sessions.CountAllTurns(ctx); err != nil {
		return Stats{}, fmt.Errorf("count messages: %w", err)
	}
	if st.ActivePrompts, err = s.prompts.CountActiveSessions(ctx); err != nil {
		return Stats{}, fmt.Errorf("count prompts: %w", err)
	}
	if st.TotalRecordings, err = s.events.CountSince(ctx, activity.RecordingCreated, time.Time{}); err != nil {
		return Stats{}, fmt.Errorf("count recordings: %w", err)
	}
	return st, nil
}
