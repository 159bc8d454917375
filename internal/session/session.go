package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the host (the PC running the server) from remote
// clients that joined over the hotspot.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// CookieName is the cookie that carries the session token.
const CookieName = "session_token"

// Session identifies one logged-in browser. The token is the identity;
// it is generated at login and carried by the client, never derived from
// the network address.
type Session struct {
	Token     string
	Username  string
	Role      Role
	CreatedAt time.Time
}

// IsHost reports whether this session may perform host-only actions.
func (s *Session) IsHost() bool { return s.Role == RoleHost }

// Store keeps active sessions in memory, keyed by token.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns it.
func (st *Store) Create(username string, role Role) *Session {
	s := &Session{
		Token:     uuid.NewString(),
		Username:  username,
		Role:      role,
		CreatedAt: time.Now(),
	}
	st.mu.Lock()
	st.sessions[s.Token] = s
	st.mu.Unlock()
	return s
}

// Get looks up a session by token.
func (st *Store) Get(token string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[token]
	return s, ok
}

// Rename changes the display name on a session and returns the old name.
func (st *Store) Rename(token, username string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[token]
	if !ok {
		return "", false
	}
	old := s.Username
	s.Username = username
	return old, true
}

// Delete removes a session. Deleting an unknown token is a no-op.
func (st *Store) Delete(token string) {
	st.mu.Lock()
	delete(st.sessions, token)
	st.mu.Unlock()
}

// DeleteByUsername removes every session held under a display name.
// Used when a user is kicked so their token stops working immediately.
func (st *Store) DeleteByUsername(username string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for token, s := range st.sessions {
		if s.Username == username {
			delete(st.sessions, token)
			n++
		}
	}
	return n
}
