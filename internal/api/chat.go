package api

import (
	"net/http"
	"strings"

	"github.com/nugget/localagent/internal/buildinfo"
	"github.com/nugget/localagent/internal/connwatch"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Model     string `json:"model,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.deps.Loop.Chat(r.Context(), req.SessionID, req.Message, req.Model)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reply)
}

// HealthResponse is the body of GET /health. The process is healthy as
// long as it answers; Status turns "degraded" when a watched dependency
// is unreachable.
type HealthResponse struct {
	Status   string                    `json:"status"`
	Version  string                    `json:"version"`
	Uptime   string                    `json:"uptime"`
	Services []connwatch.ServiceStatus `json:"services,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: buildinfo.Version,
		Uptime:  buildinfo.Uptime().String(),
	}
	if s.deps.Health != nil {
		resp.Services = s.deps.Health.Status()
		for _, svc := range resp.Services {
			if !svc.Ready {
				resp.Status = "degraded"
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Current())
}
