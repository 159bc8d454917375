package server

import (
	"net"
	"net/http"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
)

// sessionHandler is an authenticated handler: the middleware resolves the
// session token before the handler runs.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// auth resolves the session cookie, enforces the kick list, and touches
// presence on every authenticated request.
func (s *Server) auth(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		sess, ok := s.sessions.Get(cookie.Value)
		if !ok {
			clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if s.presence.IsKicked(sess.Username) {
			s.sessions.Delete(sess.Token)
			clearSessionCookie(w)
			writeError(w, http.StatusForbidden, "you were removed by the host")
			return
		}

		s.presence.Touch(sess.Token, sess.Username, sess.IsHost())
		next(w, r, sess)
	}
}

// hostOnly guards host actions; no state is mutated on denial.
func (s *Server) hostOnly(next sessionHandler) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if !sess.IsHost() {
			writeError(w, http.StatusForbidden, "permission denied")
			return
		}
		next(w, r, sess)
	}
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// remoteIP extracts the peer address without the port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// isLoopback reports whether the request came from the hosting PC itself.
func isLoopback(r *http.Request) bool {
	ip := net.ParseIP(remoteIP(r))
	return ip != nil && ip.IsLoopback()
}
