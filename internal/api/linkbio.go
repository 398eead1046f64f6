package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nugget/localagent/internal/linkbio"
)

func (s *Server) handleLinkList(w http.ResponseWriter, r *http.Request) {
	links, err := s.deps.Links.Links(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"links": links})
}

func (s *Server) handleLinkAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := s.deps.Links.AddLink(r.Context(), chi.URLParam(r, "id"), req.Title, req.URL)
	if errors.Is(err, linkbio.ErrInvalidURL) {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"link": link})
}

// handleLinkQR renders a QR code for ?url=, or for the first link of
// the session when no url is given.
func (s *Server) handleLinkQR(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		links, err := s.deps.Links.Links(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if len(links) == 0 {
			s.errorResponse(w, http.StatusNotFound, "session has no links")
			return
		}
		target = links[0].URL
	}

	png, err := linkbio.QRCode(target, parseIntParam(r, "size", linkbio.DefaultQRSize))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Links.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProfileSet(w http.ResponseWriter, r *http.Request) {
	var p linkbio.Profile
	if err := decodeJSON(r, &p); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := s.deps.Links.SetProfile(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}
