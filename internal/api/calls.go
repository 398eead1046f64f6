package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nugget/localagent/internal/telephony"
)

type callRequest struct {
	Phone    string `json:"phone"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

func (s *Server) handleCallInitiate(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		s.errorResponse(w, http.StatusBadRequest, "phone is required")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	call, err := s.deps.Calls.InitiateCall(r.Context(), req.Phone, req.Language, req.Text)
	if errors.Is(err, telephony.ErrDisabled) {
		s.errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("call initiation failed", "to", req.Phone, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "Call initiation failed")
		return
	}
	s.writeJSON(w, http.StatusOK, call)
}

func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	call, err := s.deps.Calls.CallStatus(r.Context(), chi.URLParam(r, "sid"))
	switch {
	case errors.Is(err, telephony.ErrDisabled):
		s.errorResponse(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, telephony.ErrCallNotFound):
		s.errorResponse(w, http.StatusNotFound, "Call not found")
	case err != nil:
		s.logger.Error("call status failed", "call_sid", chi.URLParam(r, "sid"), "error", err)
		s.errorResponse(w, http.StatusBadGateway, "Call status unavailable")
	default:
		s.writeJSON(w, http.StatusOK, call)
	}
}

func (s *Server) handleCallEnd(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	err := s.deps.Calls.EndCall(r.Context(), sid)
	switch {
	case errors.Is(err, telephony.ErrDisabled):
		s.errorResponse(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, telephony.ErrCallNotFound):
		s.errorResponse(w, http.StatusNotFound, "Call not found")
	case err != nil:
		s.logger.Error("end call failed", "call_sid", sid, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "Call could not be ended")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "call_sid": sid})
	}
}

func (s *Server) handleCallActive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"calls": s.deps.Calls.ActiveCalls()})
}

// handleTwiML answers Twilio's request for call instructions.
func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid form")
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(s.deps.Calls.Script(r.PostForm.Get("CallSid"))))
}

// handleTwilioStatus receives Twilio's call status callbacks.
func (s *Server) handleTwilioStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid form")
		return
	}
	sid, status := r.PostForm.Get("CallSid"), r.PostForm.Get("CallStatus")
	if sid == "" || status == "" {
		s.errorResponse(w, http.StatusBadRequest, "CallSid and CallStatus are required")
		return
	}
	s.logger.Info("call status", "call_sid", sid, "status", status)
	s.deps.Calls.UpdateStatus(sid, status)
	w.WriteHeader(http.StatusNoContent)
}
