package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nugget/localagent/internal/activity"
	"github.com/nugget/localagent/internal/agent"
	"github.com/nugget/localagent/internal/api"
	"github.com/nugget/localagent/internal/config"
	"github.com/nugget/localagent/internal/connwatch"
	"github.com/nugget/localagent/internal/contacts"
	"github.com/nugget/localagent/internal/dashboard"
	"github.com/nugget/localagent/internal/database"
	"github.com/nugget/localagent/internal/events"
	"github.com/nugget/localagent/internal/facts"
	"github.com/nugget/localagent/internal/fetch"
	"github.com/nugget/localagent/internal/linkbio"
	"github.com/nugget/localagent/internal/llm"
	"github.com/nugget/localagent/internal/memory"
	"github.com/nugget/localagent/internal/modifier"
	"github.com/nugget/localagent/internal/opstate"
	"github.com/nugget/localagent/internal/secrets"
	"github.com/nugget/localagent/internal/telephony"
	"github.com/nugget/localagent/internal/tools"
	"github.com/nugget/localagent/internal/usage"
	"github.com/nugget/localagent/internal/voice"
)

// app holds every long-lived component. serve and ask build the same
// graph; only serve puts the API in front of it.
type app struct {
	db        *sql.DB
	bus       *events.Bus
	llm       *llm.OpenAIClient
	activity  *activity.Logger
	sessions  *memory.SQLiteStore
	history   *memory.Cache
	modifiers *modifier.SQLiteStore
	prompts   *modifier.Manager
	facts     *facts.Store
	secrets   *secrets.Store
	links     *linkbio.Store
	dashboard *dashboard.Service
	tools     *tools.Registry
	voice     *voice.Client
	calls     *telephony.Client
	usage     *usage.Store
	loop      *agent.Loop
}

// newApp opens the database under cfg.DataDir and wires the stores,
// integrations and agent loop on top of it.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := database.OpenDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, bus: events.New()}
	if err := a.wire(cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(cfg *config.Config, logger *slog.Logger) error {
	var err error
	if a.activity, err = activity.NewLogger(a.db, a.bus, logger); err != nil {
		return fmt.Errorf("activity log: %w", err)
	}
	if a.sessions, err = memory.NewSQLiteStore(a.db); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	if a.modifiers, err = modifier.NewSQLiteStore(a.db); err != nil {
		return fmt.Errorf("modifier store: %w", err)
	}
	if a.facts, err = facts.NewStore(a.db); err != nil {
		return fmt.Errorf("fact store: %w", err)
	}
	if a.usage, err = usage.NewStore(a.db); err != nil {
		return fmt.Errorf("usage store: %w", err)
	}
	state, err := opstate.NewStore(a.db)
	if err != nil {
		return fmt.Errorf("operational state: %w", err)
	}
	if a.links, err = linkbio.NewStore(a.db, state); err != nil {
		return fmt.Errorf("link store: %w", err)
	}

	key, err := secrets.LoadKey(cfg.DataDir, cfg.Secrets.Key)
	if err != nil {
		return fmt.Errorf("secrets key: %w", err)
	}
	if a.secrets, err = secrets.NewStore(a.db, key); err != nil {
		return fmt.Errorf("secret store: %w", err)
	}

	dir, err := contacts.NewDirectory(cfg.Contacts.VCardFile, logger)
	if err != nil {
		return fmt.Errorf("contacts %s: %w", cfg.Contacts.VCardFile, err)
	}

	baseDir := "."
	if cfg.IdentityFile != "" {
		baseDir = filepath.Dir(cfg.IdentityFile)
	}
	a.prompts = modifier.NewManager(a.modifiers, a.activity, fetch.NewResolver(baseDir, logger), logger)
	a.history = memory.NewCache(a.sessions, cfg.Context.HydrateLimit)
	a.dashboard = dashboard.NewService(state, a.sessions, a.modifiers, a.activity)

	a.voice = voice.NewClient(cfg.Voice, logger)
	a.calls = telephony.NewClient(cfg.Telephony, logger)
	if !a.voice.Enabled() {
		logger.Info("speech synthesis disabled (not configured)")
	}
	if !a.calls.Enabled() {
		logger.Info("telephony disabled (not configured)")
	}

	a.tools = tools.NewRegistry(logger)
	builtins := tools.Builtins{
		Speech: a.voice,
		Calls:  a.calls,
		Facts:  facts.NewTools(a.facts),
	}
	if dir.Enabled() {
		builtins.Contacts = dir
	}
	if err := a.tools.RegisterBuiltins(builtins); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	assembler := agent.NewContextAssembler(a.prompts, logger,
		facts.NewContextProvider(a.facts, cfg.Context.MemoryWindow))
	if cfg.IdentityFile != "" {
		if err := assembler.LoadIdentityFile(cfg.IdentityFile); err != nil {
			logger.Warn("identity file not loaded, using built-in identity", "path", cfg.IdentityFile, "error", err)
		}
	}

	a.llm = llm.NewOpenAIClient(cfg.Models.BaseURL, cfg.Models.APIKey, cfg.Models.Timeout(), logger)
	a.loop = agent.NewLoop(agent.Config{
		LLM:       a.llm,
		Tools:     a.tools,
		Assembler: assembler,
		History:   a.history,
		Compressor: memory.Compressor{
			Threshold: cfg.Context.CompressThreshold,
			KeepHead:  cfg.Context.KeepHead,
			KeepTail:  cfg.Context.KeepTail,
		},
		Sessions:     a.sessions,
		Activity:     a.activity,
		Usage:        a.usage,
		DefaultModel: cfg.Models.Default,
		Logger:       logger,
	})

	logger.Info("agent ready",
		"tools", a.tools.Len(),
		"contacts", dir.Len(),
		"model", cfg.Models.Default,
	)
	return nil
}

func (a *app) apiDeps(health *connwatch.Manager, cfg *config.Config) api.Deps {
	return api.Deps{
		Loop:             a.loop,
		Sessions:         a.sessions,
		History:          a.history,
		Prompts:          a.prompts,
		Facts:            a.facts,
		Activity:         a.activity,
		Bus:              a.bus,
		Secrets:          a.secrets,
		Links:            a.links,
		Dashboard:        a.dashboard,
		Tools:            a.tools,
		Voice:            a.voice,
		Calls:            a.calls,
		Health:           health,
		Usage:            a.usage,
		MemoryListWindow: cfg.Context.MemoryListWindow,
		CORSOrigins:      cfg.Listen.CORSOrigins,
	}
}

// Close drains the activity writer and releases the database.
func (a *app) Close() error {
	a.activity.Close()
	return a.db.Close()
}
