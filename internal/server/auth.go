package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/config"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
)

func validDisplayName(name string) error {
	if name == "" {
		return fmt.Errorf("please enter your display name")
	}
	if len(name) > config.MaxDisplayNameLen {
		return fmt.Errorf("display name must be %d characters or less", config.MaxDisplayNameLen)
	}
	return nil
}

// handleLogin checks the shared admin credential and issues a session
// token. Requests from the hosting PC get the host role; everyone else is
// a client.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	name := strings.TrimSpace(r.PostFormValue("client_name"))

	if username != s.cfg.AdminUsername || password != s.cfg.AdminPassword {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := validDisplayName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.presence.IsKicked(name) {
		writeError(w, http.StatusForbidden, "you were removed by the host")
		return
	}

	role := session.RoleClient
	redirect := "/files"
	if isLoopback(r) {
		role = session.RoleHost
		redirect = "/dashboard"
	}

	sess := s.sessions.Create(name, role)
	setSessionCookie(w, sess.Token)
	s.presence.Touch(sess.Token, name, sess.IsHost())
	s.chat.System(fmt.Sprintf("%s joined the chat", name))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"username": name,
		"role":     role,
		"redirect": redirect,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.chat.System(fmt.Sprintf("%s left the chat", sess.Username))
	s.sessions.Delete(sess.Token)
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleCheckUsername(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string]any{
		"username_set": sess.Username != "",
		"username":     sess.Username,
	})
}

// handleSetUsername renames the caller's display name.
func (s *Server) handleSetUsername(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	name := strings.TrimSpace(req.Username)
	if err := validDisplayName(name); err != nil {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}

	if sess.Username == name {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "username": name})
		return
	}

	old, ok := s.sessions.Rename(sess.Token, name)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if old != "" {
		s.chat.System(fmt.Sprintf("%s changed name to %s", old, name))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "username": name})
}
