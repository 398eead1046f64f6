package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nugget/localagent/internal/facts"
)

func (s *Server) handleMemoryList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", s.deps.MemoryListWindow)
	if limit > s.deps.MemoryListWindow {
		limit = s.deps.MemoryListWindow
	}

	recent, err := s.deps.Facts.Recent(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	count, err := s.deps.Facts.Count(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if recent == nil {
		recent = []*facts.MemoryFact{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"memories": recent, "count": count})
}

func (s *Server) handleMemoryAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fact          string `json:"fact"`
		Category      string `json:"category"`
		SourceSession string `json:"source_session"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Fact) == "" {
		s.errorResponse(w, http.StatusBadRequest, "fact is required")
		return
	}

	f, err := s.deps.Facts.Append(r.Context(), req.Fact, req.Category, req.SourceSession)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"memory": f})
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Facts.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, facts.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
