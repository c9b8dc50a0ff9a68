package presence

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test: Register never creates a duplicate entry for the same user
// ---------------------------------------------------------------------------

func TestRegister_OverwritesInPlace(t *testing.T) {
	r := NewRegistry(0)

	r.Register("u1", "alice", "conn-1", KindPush)
	r.Register("u1", "alice", "conn-2", KindPush)

	if got := r.Count(); got != 1 {
		t.Fatalf("expected 1 entry after re-register, got %d", got)
	}

	snap := r.Snapshot()
	if snap[0].ChannelRef != "conn-2" {
		t.Errorf("expected channel ref %q (last writer wins), got %q", "conn-2", snap[0].ChannelRef)
	}
}

func TestRegister_SwitchesKind(t *testing.T) {
	r := NewRegistry(0)

	r.Register("u1", "alice", "conn-1", KindPush)
	r.Register("u1", "alice", "http-client-u1", KindPoll)

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap))
	}
	if snap[0].Kind != KindPoll {
		t.Errorf("expected kind %q, got %q", KindPoll, snap[0].Kind)
	}
}

// ---------------------------------------------------------------------------
// Test: Touch behavior
// ---------------------------------------------------------------------------

func TestTouch_NotFound(t *testing.T) {
	r := NewRegistry(0)

	_, err := r.Touch("missing", "", KindPush)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTouch_KeepsChannelWhenRefEmpty(t *testing.T) {
	r := NewRegistry(0)
	r.Register("u1", "alice", "conn-1", KindPush)

	e, err := r.Touch("u1", "", KindPoll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ChannelRef != "conn-1" || e.Kind != KindPush {
		t.Errorf("touch with empty ref must not change channel: got ref=%q kind=%q", e.ChannelRef, e.Kind)
	}
}

func TestTouch_ReplacesChannelWhenRefSupplied(t *testing.T) {
	r := NewRegistry(0)
	r.Register("u1", "alice", "conn-1", KindPush)

	e, err := r.Touch("u1", "http-client-u1", KindPoll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ChannelRef != "http-client-u1" || e.Kind != KindPoll {
		t.Errorf("expected new channel ref and kind, got ref=%q kind=%q", e.ChannelRef, e.Kind)
	}
}

// ---------------------------------------------------------------------------
// Test: Remove reports whether an entry was actually deleted
// ---------------------------------------------------------------------------

func TestRemove_ReportsActualDeletion(t *testing.T) {
	r := NewRegistry(0)
	r.Register("u1", "alice", "conn-1", KindPush)

	if !r.Remove("u1") {
		t.Fatal("first remove should report true")
	}
	if r.Remove("u1") {
		t.Fatal("second remove should report false")
	}
	if got := r.Count(); got != 0 {
		t.Fatalf("expected empty registry, got %d entries", got)
	}
}

// ---------------------------------------------------------------------------
// Test: Snapshot ordering
// ---------------------------------------------------------------------------

func TestSnapshot_InsertionOrder(t *testing.T) {
	r := NewRegistry(0)
	r.Register("u1", "alice", "c1", KindPush)
	r.Register("u2", "bob", "c2", KindPush)
	r.Register("u3", "carol", "c3", KindPoll)

	// Re-registering an existing user must not move them to the back.
	r.Register("u1", "alice", "c1b", KindPush)

	snap := r.Snapshot()
	want := []string{"alice", "bob", "carol"}
	if len(snap) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(snap))
	}
	for i, name := range want {
		if snap[i].Username != name {
			t.Errorf("snapshot[%d]: expected %q, got %q", i, name, snap[i].Username)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: FindByUsername tie-break
// ---------------------------------------------------------------------------

func TestFindByUsername(t *testing.T) {
	r := NewRegistry(0)
	r.Register("u1", "alice", "c1", KindPush)

	e, err := r.FindByUsername("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.UserID != "u1" {
		t.Errorf("expected user u1, got %q", e.UserID)
	}

	if _, err := r.FindByUsername("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown username, got %v", err)
	}
}

func TestFindByUsername_DuplicateTakesNewest(t *testing.T) {
	r := NewRegistry(0)

	// Two user IDs sharing a display name should not happen, but a buggy
	// upstream could produce it; the newest registration must win.
	r.Register("u1", "alice", "c1", KindPush)
	r.Register("u2", "alice", "c2", KindPush)

	e, err := r.FindByUsername("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.UserID != "u2" {
		t.Errorf("expected most recently registered match u2, got %q", e.UserID)
	}
}

// ---------------------------------------------------------------------------
// Test: Reap expires stale pollers only
// ---------------------------------------------------------------------------

func TestReap_RemovesStalePollEntries(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	r.Register("u1", "alice", "conn-1", KindPush)
	r.Register("u2", "bob", "http-client-u2", KindPoll)

	removed := r.Reap(time.Now().Add(31 * time.Second))
	if len(removed) != 1 || removed[0].UserID != "u2" {
		t.Fatalf("expected exactly the poll entry reaped, got %+v", removed)
	}

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].UserID != "u1" {
		t.Fatalf("expected only the push entry to survive, got %+v", snap)
	}
}

func TestReap_KeepsFreshPollEntries(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	r.Register("u2", "bob", "http-client-u2", KindPoll)

	if removed := r.Reap(time.Now().Add(10 * time.Second)); len(removed) != 0 {
		t.Fatalf("expected nothing reaped within the window, got %+v", removed)
	}
}

func TestReap_NeverRemovesPushEntries(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	r.Register("u1", "alice", "conn-1", KindPush)

	if removed := r.Reap(time.Now().Add(24 * time.Hour)); len(removed) != 0 {
		t.Fatalf("push entries must only leave via Remove, got reaped %+v", removed)
	}
}

// ---------------------------------------------------------------------------
// Test: concurrent mutations never corrupt the single-entry invariant
// ---------------------------------------------------------------------------

func TestRegistry_ConcurrentSameUser(t *testing.T) {
	r := NewRegistry(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("conn-%d", i)
			r.Register("u1", "alice", ref, KindPush)
			r.Touch("u1", "", KindPush)
			r.Snapshot()
		}(i)
	}
	wg.Wait()

	if got := r.Count(); got != 1 {
		t.Fatalf("expected exactly 1 entry for u1, got %d", got)
	}

	// The surviving entry must be internally consistent: its channel ref is
	// one of the refs some writer supplied together with a push kind.
	e := r.Snapshot()[0]
	if e.Kind != KindPush || e.ChannelRef == "" {
		t.Errorf("entry mixed state across writers: %+v", e)
	}
}
