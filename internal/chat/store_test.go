package chat

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// newTestStore connects to the database named by TEST_DATABASE_URL and wipes
// the messages table. Tests that call this helper are skipped when no test
// database is configured.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("database not available: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE messages"); err != nil {
		t.Fatalf("truncate messages: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestStore_AppendAndRoomSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t0 := time.Now().UTC().Truncate(time.Microsecond)
	ev := NewRoomEvent("alice", "hello", t0)
	if err := store.Append(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.RoomSince(ctx, t0.Add(-time.Millisecond), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Content != "hello" || got[0].ID != ev.ID {
		t.Fatalf("expected the appended message back, got %+v", got)
	}

	got, err = store.RoomSince(ctx, t0.Add(time.Millisecond), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no messages after the watermark, got %+v", got)
	}
}

func TestStore_RecentOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, content := range []string{"one", "two", "three"} {
		ev := NewRoomEvent("bob", content, base.Add(time.Duration(i)*time.Second))
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "two" || got[1].Content != "three" {
		t.Fatalf("expected latest messages oldest first, got %q, %q", got[0].Content, got[1].Content)
	}
}
