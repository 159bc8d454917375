package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/chat"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
)

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}

	s.chat.Append(sess.Username, text, chat.KindText)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleChatFeed is the incremental message feed: every 300ms it diffs
// the log length against the client's last-seen count and pushes only the
// new suffix, or the full log if the count went backwards (the log was
// reset), so the client resyncs instead of holding stale messages.
func (s *Server) handleChatFeed(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(chatFeedInterval * time.Millisecond)
	defer ticker.Stop()

	last := 0
	for {
		msgs, count := s.chat.Since(last)
		if msgs != nil {
			data, err := json.Marshal(msgs)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
		last = count

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, s.chat.History())
}

func (s *Server) handleOnlineUsers(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string]any{"users": s.presence.Online()})
}

// handleKickUser bans a display name and removes it from the online list
// immediately. Approving a later join request lifts the ban.
func (s *Server) handleKickUser(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}

	s.presence.Kick(req.Username)
	s.sessions.DeleteByUsername(req.Username)
	s.chat.System(fmt.Sprintf("%s was kicked by %s", req.Username, sess.Username))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
