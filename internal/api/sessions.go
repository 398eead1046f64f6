package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nugget/localagent/internal/activity"
	"github.com/nugget/localagent/internal/memory"
	"github.com/nugget/localagent/internal/modifier"
)

type sessionRequest struct {
	FolderID string `json:"folder_id"`
	Title    string `json:"title"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := memory.NewSessionID(time.Now())
	sess, err := s.deps.Sessions.CreateSession(r.Context(), id, req.FolderID, req.Title)
	if errors.Is(err, memory.ErrFolderNotFound) {
		s.errorResponse(w, http.StatusNotFound, "folder not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.deps.Activity.Log(sess.ID, activity.SessionCreated, map[string]any{"folder_id": sess.FolderID})
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.Sessions.ListSessions(r.Context(), r.URL.Query().Get("folder_id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

// SessionDetail is the body of GET /v1/sessions/{id}.
type SessionDetail struct {
	Metadata *memory.Session      `json:"metadata"`
	Messages []memory.Turn        `json:"messages"`
	Prompts  []*modifier.Modifier `json:"prompts"`
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, turns, ok := s.loadTranscript(w, r, id)
	if !ok {
		return
	}

	prompts, err := s.deps.Prompts.List(r.Context(), id)
	if err != nil {
		s.logger.Warn("prompt list unavailable", "session", id, "error", err)
	}
	if prompts == nil {
		prompts = []*modifier.Modifier{}
	}

	s.writeJSON(w, http.StatusOK, SessionDetail{Metadata: sess, Messages: turns, Prompts: prompts})
}

func (s *Server) handleSessionRename(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(r.URL.Query().Get("title"))
	}
	if title == "" {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	err := s.deps.Sessions.RenameSession(r.Context(), chi.URLParam(r, "id"), title)
	if errors.Is(err, memory.ErrSessionNotFound) {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSessionArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.deps.Sessions.ArchiveSession(r.Context(), id)
	if errors.Is(err, memory.ErrSessionNotFound) {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.deps.History.Forget(id)
	s.deps.Activity.Log(id, activity.SessionArchived, nil)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "session_id": id})
}

func (s *Server) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, turns, ok := s.loadTranscript(w, r, id)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}

	switch format {
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.md\"", id))
		fmt.Fprint(w, memory.ExportMarkdown(sess, turns))

	case "html":
		page, err := memory.ExportHTML(sess, turns)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)

	case "json":
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", id))
		s.writeJSON(w, http.StatusOK, map[string]any{
			"session":    sess,
			"transcript": turns,
		})

	default:
		s.errorResponse(w, http.StatusBadRequest, "unsupported format: "+format+" (use markdown, html or json)")
	}
}

// loadTranscript fetches a session and every turn of it, answering 404
// itself when the session does not exist.
func (s *Server) loadTranscript(w http.ResponseWriter, r *http.Request, id string) (*memory.Session, []memory.Turn, bool) {
	sess, err := s.deps.Sessions.GetSession(r.Context(), id)
	if errors.Is(err, memory.ErrSessionNotFound) {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return nil, nil, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return nil, nil, false
	}

	turns, err := s.deps.Sessions.LoadTurns(r.Context(), id, 0)
	if err != nil {
		s.internalError(w, r, err)
		return nil, nil, false
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	return sess, turns, true
}

func (s *Server) handleFolderList(w http.ResponseWriter, r *http.Request) {
	folders, err := s.deps.Sessions.ListFolders(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handleFolderCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.errorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	folder, err := s.deps.Sessions.CreateFolder(r.Context(), req.Name)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleFolderSessions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Sessions.GetFolder(r.Context(), id); err != nil {
		if errors.Is(err, memory.ErrFolderNotFound) {
			s.errorResponse(w, http.StatusNotFound, "folder not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	sessions, err := s.deps.Sessions.ListSessions(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessions)
}
