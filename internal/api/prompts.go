package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nugget/localagent/internal/modifier"
)

func (s *Server) handlePromptList(w http.ResponseWriter, r *http.Request) {
	mods, err := s.deps.Prompts.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if mods == nil {
		mods = []*modifier.Modifier{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"active_prompts": mods})
}

func (s *Server) handlePromptCreate(w http.ResponseWriter, r *http.Request) {
	var p modifier.Params
	if err := decodeJSON(r, &p); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := s.deps.Prompts.Create(r.Context(), chi.URLParam(r, "id"), p)
	if errors.Is(err, modifier.ErrInvalid) {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handlePromptDeactivate(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Prompts.Deactivate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"))
	if errors.Is(err, modifier.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "prompt not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handlePromptRemove(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Prompts.Remove(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"))
	if errors.Is(err, modifier.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "prompt not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handlePromptClear(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Prompts.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handlePromptTemplates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"templates": modifier.Templates()})
}
