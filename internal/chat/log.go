package chat

import (
	"context"
	"time"
)

// DefaultQueryLimit caps how many room messages a single history or poll
// query returns.
const DefaultQueryLimit = 50

// Log is the append-only store of room messages. The presence and fan-out
// core only appends on send and reads time-bounded windows; indexing and
// retention are the store's concern.
type Log interface {
	// Append persists a room event. Failures are transient from the core's
	// point of view; the caller surfaces a generic service error and does
	// not retry.
	Append(ctx context.Context, ev Event) error

	// RoomSince returns room messages with SentAt strictly after since, in
	// ascending time order, capped at limit.
	RoomSince(ctx context.Context, since time.Time, limit int) ([]Event, error)

	// Recent returns the latest room messages, oldest first, capped at limit.
	Recent(ctx context.Context, limit int) ([]Event, error)
}
