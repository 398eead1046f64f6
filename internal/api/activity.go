package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer     = 64
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser origins are enforced by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleActivityList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 100)
	evs, err := s.deps.Activity.Recent(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

// handleActivityStream pushes the session's activity events over a
// WebSocket as they are recorded. The connection is write-only; client
// frames are read only to notice a close.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("activity stream upgrade failed", "session", sessionID, "error", err)
		return
	}
	defer conn.Close()

	sub := s.deps.Bus.Subscribe(sessionID, streamBuffer)
	defer sub.Close()

	s.logger.Debug("activity stream opened", "session", sessionID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("activity stream read ended", "session", sessionID, "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("activity stream write failed", "session", sessionID, "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
