// Package chat holds the bounded in-memory message log shared by every
// connected user.
package chat

import (
	"sync"
	"time"
)

// MaxMessages bounds the log; the oldest message is evicted first.
const MaxMessages = 100

const (
	KindText   = "text"
	KindSystem = "system"
)

// Message is one chat entry. System messages (joins, uploads, kicks) use
// the reserved "System" username.
type Message struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// Log is a strict FIFO ring of at most MaxMessages entries.
type Log struct {
	mu   sync.Mutex
	msgs []Message
}

func NewLog() *Log {
	return &Log{}
}

// Append pushes a message to the tail, evicting the head when full.
func (l *Log) Append(username, text, kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, Message{
		Username:  username,
		Message:   text,
		Timestamp: time.Now().Format("15:04:05"),
		Type:      kind,
	})
	if len(l.msgs) > MaxMessages {
		l.msgs = l.msgs[len(l.msgs)-MaxMessages:]
	}
}

// System appends a system notification.
func (l *Log) System(text string) {
	l.Append("System", text, KindSystem)
}

// History returns a copy of the whole log.
func (l *Log) History() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the current message count.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Since diffs the log against a client's last-seen count. If the log grew,
// only the new suffix is returned; if it shrank (externally cleared), the
// full log is resent; otherwise nothing. The returned count is what the
// caller should pass next time.
func (l *Log) Since(last int) ([]Message, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.msgs)
	switch {
	case n > last:
		out := make([]Message, n-last)
		copy(out, l.msgs[last:])
		return out, n
	case n < last:
		out := make([]Message, n)
		copy(out, l.msgs)
		return out, n
	default:
		return nil, n
	}
}
