package api

import (
	"net/http"

	"github.com/nugget/localagent/internal/dashboard"
)

func (s *Server) handleDashboardGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Dashboard.Config(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDashboardSet(w http.ResponseWriter, r *http.Request) {
	var cfg dashboard.Config
	if err := decodeJSON(r, &cfg); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Dashboard.SetConfig(r.Context(), cfg); err != nil {
		s.internalError(w, r, err)
		return
	}
	saved, err := s.deps.Dashboard.Config(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Dashboard.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}
