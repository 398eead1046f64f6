package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nugget/localagent/internal/secrets"
)

type secretRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *Server) handleSecretList(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Secrets.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"secrets": list})
}

func (s *Server) handleSecretAdd(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Value == "" {
		s.errorResponse(w, http.StatusBadRequest, "name and value are required")
		return
	}

	sec, err := s.deps.Secrets.Add(r.Context(), chi.URLParam(r, "id"), req.Name, req.Type, req.Value)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"secret": sec})
}

func (s *Server) handleSecretReveal(w http.ResponseWriter, r *http.Request) {
	sec, err := s.deps.Secrets.Reveal(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
	if errors.Is(err, secrets.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "secret not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"secret": sec})
}

func (s *Server) handleSecretDelete(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Secrets.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
	if errors.Is(err, secrets.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "secret not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
