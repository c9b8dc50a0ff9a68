package chat

import (
	"context"
	"sync"
	"time"
)

// MaxMemoryMessages bounds how many room messages the in-memory log retains.
const MaxMemoryMessages = 1000

// MemoryLog keeps recent room messages in a fixed-size ring buffer. It backs
// the server when no database is configured and serves as the log fixture in
// tests. Older messages are overwritten once the buffer is full.
type MemoryLog struct {
	mu    sync.RWMutex
	items []Event
	pos   int
	count int
}

// NewMemoryLog creates an empty in-memory message log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		items: make([]Event, MaxMemoryMessages),
	}
}

// Append stores the event, overwriting the oldest entry when full.
func (l *MemoryLog) Append(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items[l.pos] = ev
	l.pos = (l.pos + 1) % len(l.items)
	if l.count < len(l.items) {
		l.count++
	}
	return nil
}

// RoomSince returns retained room messages newer than since, oldest first,
// capped at limit.
func (l *MemoryLog) RoomSince(_ context.Context, since time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, ev := range l.ordered() {
		if !ev.SentAt.After(since) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Recent returns the latest retained messages, oldest first, capped at limit.
func (l *MemoryLog) Recent(_ context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.ordered()
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// ordered returns retained room events oldest first. Caller holds the lock.
func (l *MemoryLog) ordered() []Event {
	out := make([]Event, 0, l.count)
	start := (l.pos - l.count + len(l.items)) % len(l.items)
	for i := 0; i < l.count; i++ {
		ev := l.items[(start+i)%len(l.items)]
		if ev.Scope != ScopeRoom {
			continue
		}
		out = append(out, ev)
	}
	return out
}
