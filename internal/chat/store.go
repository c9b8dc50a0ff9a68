package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store is the PostgreSQL-backed message log.
type Store struct {
	db *sql.DB
}

// NewStore creates a message log backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts a room event into the messages table.
func (s *Store) Append(ctx context.Context, ev Event) error {
	const query = `
		INSERT INTO messages (id, username, content, scope, sent_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, ev.ID, ev.Username, ev.Content, string(ev.Scope), ev.SentAt)
	if err != nil {
		return fmt.Errorf("chat: insert message: %w", err)
	}
	return nil
}

// RoomSince returns visible room messages newer than since, oldest first.
func (s *Store) RoomSince(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	const query = `
		SELECT id, username, content, sent_at
		FROM messages
		WHERE scope = 'room' AND visible AND sent_at > $1
		ORDER BY sent_at ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: query messages since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Recent returns the latest visible room messages. The query walks the
// time index backwards for the cap, then the result is reversed so callers
// always see ascending time order.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	const query = `
		SELECT id, username, content, sent_at
		FROM messages
		WHERE scope = 'room' AND visible
		ORDER BY sent_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: query recent messages: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		ev := Event{Scope: ScopeRoom}
		if err := rows.Scan(&ev.ID, &ev.Username, &ev.Content, &ev.SentAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate messages: %w", err)
	}
	return events, nil
}
