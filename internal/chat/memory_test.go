package chat

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryLog_RoomSinceWatermark(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	t0 := time.Now()
	ev := NewRoomEvent("alice", "hello", t0)
	if err := l.Append(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A watermark just before t0 must include the message.
	got, err := l.RoomSince(ctx, t0.Add(-time.Millisecond), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("expected [hello], got %+v", got)
	}

	// A watermark just after t0 must exclude it.
	got, err = l.RoomSince(ctx, t0.Add(time.Millisecond), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no messages, got %+v", got)
	}
}

func TestMemoryLog_RoomSinceOrderAndLimit(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 10; i++ {
		ev := NewRoomEvent("alice", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Second))
		if err := l.Append(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := l.RoomSince(ctx, base.Add(-time.Second), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected limit of 5 messages, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].SentAt.Before(got[i-1].SentAt) {
			t.Fatalf("messages out of ascending order at index %d", i)
		}
	}
}

func TestMemoryLog_RecentReturnsLatestOldestFirst(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 60; i++ {
		ev := NewRoomEvent("bob", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Second))
		if err := l.Append(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := l.Recent(ctx, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("expected 50 messages, got %d", len(got))
	}
	if got[0].Content != "msg-10" || got[len(got)-1].Content != "msg-59" {
		t.Fatalf("expected window msg-10..msg-59, got %s..%s", got[0].Content, got[len(got)-1].Content)
	}
}

func TestMemoryLog_RingOverwrite(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < MaxMemoryMessages+5; i++ {
		ev := NewRoomEvent("bob", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Millisecond))
		if err := l.Append(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := l.RoomSince(ctx, base.Add(-time.Second), MaxMemoryMessages+10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != MaxMemoryMessages {
		t.Fatalf("expected retention of %d messages, got %d", MaxMemoryMessages, len(got))
	}
	if got[0].Content != "msg-5" {
		t.Fatalf("expected oldest retained message msg-5, got %s", got[0].Content)
	}
}
