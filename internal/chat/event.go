// Package chat defines the chat events exchanged in the room and the
// append-only message log they are persisted to. Only room-scoped events are
// ever written to the log; private messages exist solely in flight.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Scope tells whether an event belongs to the shared room or to a
// one-to-one exchange.
type Scope string

const (
	ScopeRoom    Scope = "room"
	ScopePrivate Scope = "private"
)

// Event is a single chat message.
type Event struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at"`
	Scope     Scope     `json:"-"`
	Recipient string    `json:"recipient,omitempty"` // private scope only, never persisted
}

// NewRoomEvent builds a room-scoped event with a fresh ID stamped at now.
// The content is stored as given; callers validate and trim first.
func NewRoomEvent(username, content string, now time.Time) Event {
	return Event{
		ID:       uuid.New().String(),
		Username: username,
		Content:  content,
		SentAt:   now,
		Scope:    ScopeRoom,
	}
}

// NewPrivateEvent builds a private-scoped event addressed to recipient.
func NewPrivateEvent(username, recipient, content string, now time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Username:  username,
		Content:   content,
		SentAt:    now,
		Scope:     ScopePrivate,
		Recipient: recipient,
	}
}
