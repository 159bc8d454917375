package presence

import (
	"testing"
	"time"
)

func TestOnlineDedupesAndSorts(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Touch("tok1", "bob", false)
	r.Touch("tok2", "alice", false)
	r.Touch("tok3", "bob", false) // same name, second session

	online := r.Online()
	if len(online) != 2 {
		t.Fatalf("got %d users, want 2: %+v", len(online), online)
	}
	if online[0].Username != "alice" || online[1].Username != "bob" {
		t.Errorf("order = %s, %s", online[0].Username, online[1].Username)
	}
}

func TestOnlineHostFlagWins(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Touch("client-tok", "admin", false)
	r.Touch("host-tok", "admin", true)

	online := r.Online()
	if len(online) != 1 {
		t.Fatalf("got %d users, want 1", len(online))
	}
	if !online[0].IsHost {
		t.Error("host record did not win the dedup")
	}
}

func TestTimeoutEvictsIdleUsers(t *testing.T) {
	r := NewRegistry(30 * time.Millisecond)
	r.Touch("tok1", "idle", false)
	time.Sleep(60 * time.Millisecond)
	r.Touch("tok2", "active", false)

	online := r.Online()
	if len(online) != 1 || online[0].Username != "active" {
		t.Fatalf("online = %+v, want only active", online)
	}
	t.Log("✓ idle session swept without a cleanup timer")
}

func TestTouchRefreshesLastSeen(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	r.Touch("tok", "alice", false)
	for i := 0; i < 3; i++ {
		time.Sleep(25 * time.Millisecond)
		r.Touch("tok", "alice", false)
	}
	if len(r.Online()) != 1 {
		t.Error("active user evicted despite recent requests")
	}
}

func TestKickBansAndRemovesImmediately(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Touch("tok1", "troll", false)
	r.Touch("tok2", "troll", false)
	r.Touch("tok3", "bystander", false)

	r.Kick("troll")

	if !r.IsKicked("troll") {
		t.Error("kicked name not banned")
	}
	online := r.Online()
	if len(online) != 1 || online[0].Username != "bystander" {
		t.Errorf("online after kick = %+v", online)
	}
}

func TestUnbanLiftsKick(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Kick("alice")
	r.Unban("alice")
	if r.IsKicked("alice") {
		t.Error("unban did not lift the kick")
	}
	r.Touch("tok", "alice", false)
	if len(r.Online()) != 1 {
		t.Error("unbanned user not listed")
	}
}

func TestZeroTimeoutFallsBackToDefault(t *testing.T) {
	r := NewRegistry(0)
	if r.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", r.timeout, DefaultTimeout)
	}
}
