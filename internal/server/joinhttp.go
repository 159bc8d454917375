package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/join"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
)

// handleJoinInfo is the entry point a scanned QR code lands on.
func (s *Server) handleJoinInfo(w http.ResponseWriter, r *http.Request) {
	server := s.cfg.HotspotSSID
	if server == "" {
		server = "file share"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server":  server,
		"message": "submit a display name to /join/request and poll /join/status/{id}",
	})
}

// handleJoinRequest queues a remote client for host approval.
func (s *Server) handleJoinRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := validDisplayName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := s.gate.Submit(name, remoteIP(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "client_id": id})
}

// handleJoinStatus is the client's poll loop. The poll that first sees an
// approval establishes the session as a side effect; the request record
// is consumed, so later polls for the same id report unknown.
func (s *Server) handleJoinStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, name := s.gate.Poll(id)

	switch status {
	case join.StatusPending:
		writeJSON(w, http.StatusOK, map[string]any{"status": join.StatusPending})
	case join.StatusApproved:
		sess := s.sessions.Create(name, session.RoleClient)
		setSessionCookie(w, sess.Token)
		s.presence.Touch(sess.Token, name, false)
		s.chat.System(fmt.Sprintf("%s joined the chat", name))
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   join.StatusApproved,
			"redirect": "/files",
		})
	case join.StatusRejected:
		writeJSON(w, http.StatusOK, map[string]any{"status": join.StatusRejected})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"status": join.StatusUnknown})
	}
}

// handleJoinRespond lets the host approve or reject a pending client.
func (s *Server) handleJoinRespond(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		ClientID string `json:"client_id"`
		Action   string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	var approve bool
	switch req.Action {
	case "approve":
		approve = true
	case "reject":
		approve = false
	default:
		writeError(w, http.StatusBadRequest, "action must be approve or reject")
		return
	}

	if err := s.gate.Respond(req.ClientID, approve); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleJoinPending(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string]any{"pending": s.gate.Pending()})
}

func (s *Server) handleJoinHistory(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	history := s.gate.History()
	if history == nil {
		history = []join.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}
