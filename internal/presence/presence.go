// Package presence tracks which users are currently online. HTTP is
// stateless, so "online" is a heuristic: a user is online while their
// most recent authenticated request is within the timeout.
package presence

import (
	"sort"
	"sync"
	"time"
)

// DefaultTimeout is how long a user stays "online" after their last request.
const DefaultTimeout = 30 * time.Second

type record struct {
	username string
	lastSeen time.Time
	isHost   bool
}

// OnlineUser is one entry in the deduplicated online listing.
type OnlineUser struct {
	Username string `json:"username"`
	IsHost   bool   `json:"is_server"`
}

// Registry tracks per-session activity plus the set of kicked names.
// The two maps are guarded by independent locks; no operation holds both.
type Registry struct {
	timeout time.Duration

	mu      sync.Mutex
	records map[string]*record // keyed by session token

	kmu    sync.Mutex
	kicked map[string]struct{}
}

func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		timeout: timeout,
		records: make(map[string]*record),
		kicked:  make(map[string]struct{}),
	}
}

// Touch upserts the last-seen time for a session and opportunistically
// sweeps expired entries. There is no separate cleanup timer; every call
// amortizes the sweep.
func (r *Registry) Touch(sessionKey, username string, isHost bool) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[sessionKey] = &record{username: username, lastSeen: now, isHost: isHost}
	r.sweepLocked(now)
}

// Online returns the distinct display names seen within the timeout.
// If a name has both a host and a client record, the host flag wins.
func (r *Registry) Online() []OnlineUser {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)

	byName := make(map[string]bool)
	for _, rec := range r.records {
		if host, ok := byName[rec.username]; !ok || (rec.isHost && !host) {
			byName[rec.username] = rec.isHost
		}
	}

	out := make([]OnlineUser, 0, len(byName))
	for name, host := range byName {
		out = append(out, OnlineUser{Username: name, IsHost: host})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (r *Registry) sweepLocked(now time.Time) {
	for key, rec := range r.records {
		if now.Sub(rec.lastSeen) > r.timeout {
			delete(r.records, key)
		}
	}
}

// Kick bans a display name and drops all of its presence records so the
// user disappears from the online list immediately, not after the timeout.
func (r *Registry) Kick(username string) {
	r.kmu.Lock()
	r.kicked[username] = struct{}{}
	r.kmu.Unlock()

	r.mu.Lock()
	for key, rec := range r.records {
		if rec.username == username {
			delete(r.records, key)
		}
	}
	r.mu.Unlock()
}

// Unban lifts a kick. Approving a join request calls this: a kick is a
// reset, not a permanent ban.
func (r *Registry) Unban(username string) {
	r.kmu.Lock()
	delete(r.kicked, username)
	r.kmu.Unlock()
}

// IsKicked reports whether a display name is currently banned.
func (r *Registry) IsKicked(username string) bool {
	r.kmu.Lock()
	defer r.kmu.Unlock()
	_, ok := r.kicked[username]
	return ok
}
