package chat

import (
	"fmt"
	"testing"
)

func TestAppendCapsAtMaxMessages(t *testing.T) {
	l := NewLog()
	for i := 0; i < 150; i++ {
		l.Append("alice", fmt.Sprintf("msg %d", i), KindText)
	}
	if l.Len() != MaxMessages {
		t.Fatalf("len = %d, want %d", l.Len(), MaxMessages)
	}

	hist := l.History()
	// Oldest 50 evicted; order preserved.
	if hist[0].Message != "msg 50" {
		t.Errorf("head = %q, want msg 50", hist[0].Message)
	}
	if hist[len(hist)-1].Message != "msg 149" {
		t.Errorf("tail = %q, want msg 149", hist[len(hist)-1].Message)
	}
	for i, m := range hist {
		if want := fmt.Sprintf("msg %d", i+50); m.Message != want {
			t.Fatalf("hist[%d] = %q, want %q", i, m.Message, want)
		}
	}
	t.Logf("✓ log capped at %d with FIFO eviction", MaxMessages)
}

func TestSystemMessage(t *testing.T) {
	l := NewLog()
	l.System("bob joined the session")
	hist := l.History()
	if len(hist) != 1 {
		t.Fatalf("len = %d", len(hist))
	}
	if hist[0].Username != "System" || hist[0].Type != KindSystem {
		t.Errorf("system message = %+v", hist[0])
	}
	if hist[0].Timestamp == "" {
		t.Error("missing timestamp")
	}
}

func TestSinceDelta(t *testing.T) {
	l := NewLog()
	l.Append("a", "one", KindText)
	l.Append("a", "two", KindText)

	msgs, n := l.Since(0)
	if len(msgs) != 2 || n != 2 {
		t.Fatalf("initial poll: %d msgs, count %d", len(msgs), n)
	}

	// Nothing new: empty delta, same cursor.
	msgs, n = l.Since(n)
	if msgs != nil || n != 2 {
		t.Fatalf("idle poll: %v, count %d", msgs, n)
	}

	l.Append("b", "three", KindText)
	msgs, n = l.Since(n)
	if len(msgs) != 1 || msgs[0].Message != "three" || n != 3 {
		t.Fatalf("delta poll: %+v, count %d", msgs, n)
	}
}

func TestSinceShrunkLogResendsAll(t *testing.T) {
	l := NewLog()
	l.Append("a", "one", KindText)
	// A cursor beyond the log length means the client saw a longer log
	// than now exists; the full log is resent.
	msgs, n := l.Since(5)
	if len(msgs) != 1 || msgs[0].Message != "one" || n != 1 {
		t.Fatalf("shrink poll: %+v, count %d", msgs, n)
	}
}

func TestHistoryIsACopy(t *testing.T) {
	l := NewLog()
	l.Append("a", "original", KindText)
	hist := l.History()
	hist[0].Message = "mutated"
	if l.History()[0].Message != "original" {
		t.Error("History exposed internal storage")
	}
}
