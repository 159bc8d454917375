// Package join implements the approval queue that gates remote clients.
// A client submits a display name, the host approves or rejects it, and
// the client polls until it sees the decision.
package join

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultTTL is how long an unresolved request survives before it is
// silently dropped.
const DefaultTTL = 5 * time.Minute

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	// StatusUnknown is returned for ids that never existed, expired, or
	// were already consumed by an earlier poll.
	StatusUnknown Status = "unknown"
)

var ErrUnknownRequest = errors.New("unknown join request")

// Request is one pending client waiting for a host decision.
type Request struct {
	ID          string    `json:"client_id"`
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	RequestTime time.Time `json:"request_time"`
	Origin      string    `json:"origin"`
}

// HistoryEntry records a resolved request.
type HistoryEntry struct {
	Name   string `json:"name"`
	Action string `json:"action"` // "approved" or "rejected"
	Origin string `json:"origin"`
	Time   string `json:"time"`
}

// Gate owns the pending-request queue. The unban hook is called when a
// request is approved, lifting any kick on that name.
type Gate struct {
	ttl   time.Duration
	unban func(name string)

	mu      sync.Mutex
	pending map[string]*Request

	hmu     sync.Mutex
	history []HistoryEntry
}

func NewGate(ttl time.Duration, unban func(name string)) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if unban == nil {
		unban = func(string) {}
	}
	return &Gate{
		ttl:     ttl,
		unban:   unban,
		pending: make(map[string]*Request),
	}
}

// Submit queues a join request and returns its id. Submitting a name that
// already has a pending request returns the existing id, so a client that
// retries does not pile up duplicates.
func (g *Gate) Submit(name, origin string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(time.Now())

	for _, req := range g.pending {
		if req.Name == name && req.Status == StatusPending {
			return req.ID
		}
	}

	req := &Request{
		ID:          uuid.NewString(),
		Name:        name,
		Status:      StatusPending,
		RequestTime: time.Now(),
		Origin:      origin,
	}
	g.pending[req.ID] = req
	return req.ID
}

// Respond resolves a pending request. Approval also lifts any kick on the
// name. The record stays queued until the client's next poll consumes it.
func (g *Gate) Respond(id string, approve bool) error {
	g.mu.Lock()
	req, ok := g.pending[id]
	if !ok || req.Status != StatusPending {
		g.mu.Unlock()
		return ErrUnknownRequest
	}
	if approve {
		req.Status = StatusApproved
	} else {
		req.Status = StatusRejected
	}
	name, origin, status := req.Name, req.Origin, req.Status
	g.mu.Unlock()

	if approve {
		g.unban(name)
	}

	g.hmu.Lock()
	g.history = append(g.history, HistoryEntry{
		Name:   name,
		Action: string(status),
		Origin: origin,
		Time:   time.Now().Format("2006-01-02 15:04:05"),
	})
	g.hmu.Unlock()
	return nil
}

// Poll reports the state of a request. The first poll that observes a
// decision consumes the record: the caller must establish the session (on
// approval) right then, because a second poll returns StatusUnknown.
func (g *Gate) Poll(id string) (Status, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(time.Now())

	req, ok := g.pending[id]
	if !ok {
		return StatusUnknown, ""
	}
	if req.Status == StatusPending {
		return StatusPending, req.Name
	}
	delete(g.pending, id)
	return req.Status, req.Name
}

// Pending lists unresolved requests for the host UI.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(time.Now())

	out := make([]Request, 0, len(g.pending))
	for _, req := range g.pending {
		if req.Status == StatusPending {
			out = append(out, *req)
		}
	}
	return out
}

// History returns every resolved request in order of resolution.
func (g *Gate) History() []HistoryEntry {
	g.hmu.Lock()
	defer g.hmu.Unlock()
	out := make([]HistoryEntry, len(g.history))
	copy(out, g.history)
	return out
}

// sweepLocked drops pending requests older than the TTL. Amortized on
// every call that already holds the lock, like the presence sweep.
func (g *Gate) sweepLocked(now time.Time) {
	for id, req := range g.pending {
		if req.Status == StatusPending && now.Sub(req.RequestTime) > g.ttl {
			delete(g.pending, id)
		}
	}
}
