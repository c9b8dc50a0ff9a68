// Package presence maintains the in-memory table of currently online users.
// It is the single authority for "who is online" and reconciles the two
// liveness signals the server sees: push connections prove liveness by
// staying open (and are removed only on an explicit close), while polling
// clients prove liveness by re-announcing on every request and expire when
// they go quiet.
package presence

import (
	"errors"
	"sync"
	"time"
)

// ChannelKind distinguishes how an online user can be reached.
type ChannelKind string

const (
	// KindPush marks users reachable through a live WebSocket connection.
	KindPush ChannelKind = "push"

	// KindPoll marks users that announce themselves via HTTP polling. Their
	// channel ref is a synthetic marker, not a deliverable channel.
	KindPoll ChannelKind = "poll"
)

// DefaultPollExpiry is how long a polling user stays in the registry without
// a new poll before Reap removes them.
const DefaultPollExpiry = 30 * time.Second

// ErrNotFound is returned by lookups that miss. Callers are expected to fall
// back to Register (for Touch) or treat the user as offline (for
// FindByUsername); it is never surfaced to clients as-is.
var ErrNotFound = errors.New("presence: user not found")

// Entry is one online user as the registry sees them.
type Entry struct {
	UserID     string      `json:"user_id"`
	Username   string      `json:"username"`
	ChannelRef string      `json:"-"` // connection ID for push, synthetic marker for poll
	Kind       ChannelKind `json:"-"`
	LastSeenAt time.Time   `json:"-"`

	seq uint64 // registration sequence, used for duplicate-username tie-breaks
}

// Registry is the shared table of online users. All methods are safe for
// concurrent use; a single mutex serializes mutations so that an entry is
// never observed with fields from two different writers.
type Registry struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	order      []string // user IDs in insertion order
	pollExpiry time.Duration
	seq        uint64
	now        func() time.Time
}

// NewRegistry creates an empty registry. A pollExpiry of zero selects
// DefaultPollExpiry.
func NewRegistry(pollExpiry time.Duration) *Registry {
	if pollExpiry <= 0 {
		pollExpiry = DefaultPollExpiry
	}
	return &Registry{
		entries:    make(map[string]*Entry),
		pollExpiry: pollExpiry,
		now:        time.Now,
	}
}

// Register inserts or overwrites the entry for userID and stamps it as seen
// now. Re-registering an existing user replaces the channel in place
// (last writer wins) and keeps the user's original position in the snapshot
// order; it never creates a duplicate.
func (r *Registry) Register(userID, username, channelRef string, kind ChannelKind) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e, ok := r.entries[userID]
	if !ok {
		e = &Entry{UserID: userID}
		r.entries[userID] = e
		r.order = append(r.order, userID)
	}
	e.Username = username
	e.ChannelRef = channelRef
	e.Kind = kind
	e.LastSeenAt = r.now()
	e.seq = r.seq
	return *e
}

// Touch refreshes the liveness timestamp for an existing entry. A non-empty
// channelRef re-points the entry at a fresh channel (poll clients supply a
// new synthetic marker on every request) and updates the kind alongside it;
// an empty channelRef leaves the channel and kind untouched. Returns
// ErrNotFound if the user has no entry, in which case the caller must fall
// back to Register.
func (r *Registry) Touch(userID, channelRef string, kind ChannelKind) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if channelRef != "" {
		e.ChannelRef = channelRef
		e.Kind = kind
	}
	e.LastSeenAt = r.now()
	return *e, nil
}

// Remove deletes the entry for userID. The returned bool reports whether an
// entry was actually deleted, so callers can fire departure announcements at
// most once even when close is signaled through multiple paths.
func (r *Registry) Remove(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(userID)
}

func (r *Registry) removeLocked(userID string) bool {
	if _, ok := r.entries[userID]; !ok {
		return false
	}
	delete(r.entries, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot returns a copy of all entries in insertion order. The copy is
// stable for the caller; later mutations do not affect it.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// FindByUsername returns the entry whose display name matches username,
// needed to route private messages. Usernames should be unique among online
// users; if a buggy upstream registers a duplicate, the most recently
// registered entry wins. That tie-break keeps routing deterministic, it does
// not make the duplicate correct.
func (r *Registry) FindByUsername(username string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *Entry
	for _, e := range r.entries {
		if e.Username != username {
			continue
		}
		if found == nil || e.seq > found.seq {
			found = e
		}
	}
	if found == nil {
		return Entry{}, ErrNotFound
	}
	return *found, nil
}

// Reap removes every poll-kind entry whose last poll is older than the
// expiry window, measured against now. Push entries are never reaped; a
// live connection needs no re-announcement. The removed entries are
// returned. Reaping is silent cleanup: no departure announcement fires for
// expired pollers.
func (r *Registry) Reap(now time.Time) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Entry
	for _, id := range append([]string(nil), r.order...) {
		e := r.entries[id]
		if e.Kind == KindPoll && now.Sub(e.LastSeenAt) > r.pollExpiry {
			removed = append(removed, *e)
			r.removeLocked(id)
		}
	}
	return removed
}
