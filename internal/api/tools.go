package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/nugget/localagent/internal/activity"
	"github.com/nugget/localagent/internal/voice"
)

func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	defs := s.deps.Tools.Definitions()
	if defs == nil {
		defs = []map[string]any{}
	}
	s.writeJSON(w, http.StatusOK, defs)
}

type speechRequest struct {
	Text      string `json:"text"`
	Language  string `json:"language"`
	VoiceID   string `json:"voice_id"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.errorResponse(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Language == "" {
		req.Language = voice.DefaultLanguage
	}

	audio, err := s.deps.Voice.Synthesize(r.Context(), req.Text, req.Language, req.VoiceID)
	if errors.Is(err, voice.ErrDisabled) {
		s.errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("speech generation failed", "language", req.Language, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "Speech generation failed")
		return
	}

	s.deps.Activity.Log(req.SessionID, activity.RecordingCreated, map[string]any{
		"language": req.Language,
		"chars":    len([]rune(req.Text)),
		"bytes":    len(audio),
	})

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Write(audio)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"languages": s.deps.Voice.Languages()})
}
