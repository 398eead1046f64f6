// Package api implements the LocalAgent REST API.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nugget/localagent/internal/activity"
	"github.com/nugget/localagent/internal/agent"
	"github.com/nugget/localagent/internal/connwatch"
	"github.com/nugget/localagent/internal/dashboard"
	"github.com/nugget/localagent/internal/events"
	"github.com/nugget/localagent/internal/facts"
	"github.com/nugget/localagent/internal/linkbio"
	"github.com/nugget/localagent/internal/memory"
	"github.com/nugget/localagent/internal/modifier"
	"github.com/nugget/localagent/internal/secrets"
	"github.com/nugget/localagent/internal/telephony"
	"github.com/nugget/localagent/internal/tools"
	"github.com/nugget/localagent/internal/usage"
	"github.com/nugget/localagent/internal/voice"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Deps are the components the API serves. Every field is required
// except Health, which only enriches /health, and Usage.
type Deps struct {
	Loop      *agent.Loop
	Sessions  *memory.SQLiteStore
	History   *memory.Cache
	Prompts   *modifier.Manager
	Facts     *facts.Store
	Activity  *activity.Logger
	Bus       *events.Bus
	Secrets   *secrets.Store
	Links     *linkbio.Store
	Dashboard *dashboard.Service
	Tools     *tools.Registry
	Voice     *voice.Client
	Calls     *telephony.Client
	Health    *connwatch.Manager
	Usage     *usage.Store

	// MemoryListWindow caps GET /v1/memory.
	MemoryListWindow int
	CORSOrigins      []string
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	deps    Deps
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MemoryListWindow <= 0 {
		deps.MemoryListWindow = 100
	}
	return &Server{
		address: address,
		port:    port,
		deps:    deps,
		logger:  logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.deps.CORSOrigins))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Post("/chat", s.handleChat)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleSessionCreate)
			r.Get("/", s.handleSessionList)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleSessionGet)
				r.Put("/", s.handleSessionRename)
				r.Delete("/", s.handleSessionArchive)
				r.Get("/export", s.handleSessionExport)

				r.Get("/prompts", s.handlePromptList)
				r.Post("/prompts", s.handlePromptCreate)
				r.Delete("/prompts", s.handlePromptClear)
				r.Delete("/prompts/{pid}", s.handlePromptRemove)
				r.Post("/prompts/{pid}/deactivate", s.handlePromptDeactivate)

				r.Get("/activity", s.handleActivityList)
				r.Get("/activity/stream", s.handleActivityStream)

				r.Get("/secrets", s.handleSecretList)
				r.Post("/secrets", s.handleSecretAdd)
				r.Get("/secrets/{sid}/reveal", s.handleSecretReveal)
				r.Delete("/secrets/{sid}", s.handleSecretDelete)

				r.Get("/links", s.handleLinkList)
				r.Post("/links", s.handleLinkAdd)
				r.Get("/links/qr", s.handleLinkQR)
				r.Get("/linkbio-profile", s.handleProfileGet)
				r.Put("/linkbio-profile", s.handleProfileSet)
			})
		})

		r.Get("/prompt-templates", s.handlePromptTemplates)

		r.Get("/memory", s.handleMemoryList)
		r.Post("/memory", s.handleMemoryAdd)
		r.Delete("/memory/{id}", s.handleMemoryDelete)

		r.Get("/folders", s.handleFolderList)
		r.Post("/folders", s.handleFolderCreate)
		r.Get("/folders/{id}/sessions", s.handleFolderSessions)

		r.Get("/dashboard", s.handleDashboardGet)
		r.Put("/dashboard", s.handleDashboardSet)
		r.Get("/dashboard/stats", s.handleDashboardStats)

		r.Get("/tools", s.handleToolList)
		r.Get("/usage", s.handleUsage)

		r.Post("/speech", s.handleSpeech)
		r.Get("/speech/languages", s.handleLanguages)

		r.Post("/call/initiate", s.handleCallInitiate)
		r.Get("/call/status/{sid}", s.handleCallStatus)
		r.Post("/call/{sid}/end", s.handleCallEnd)
		r.Get("/call/active", s.handleCallActive)
		r.Post("/twilio/twiml", s.handleTwiML)
		r.Post("/twilio/status", s.handleTwilioStatus)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // chat turns wait on the model
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)

	errc := make(chan error, 1)
	go func() { errc <- s.server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is required by the WebSocket upgrade.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// cors allows the configured browser origins. An empty list allows none.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed[origin] || allowed["*"]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

// internalError logs err and answers 500 without leaking details.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	s.errorResponse(w, http.StatusInternalServerError, "internal error")
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
