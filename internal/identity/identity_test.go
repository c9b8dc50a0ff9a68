package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test: token mint and resolve round trip
// ---------------------------------------------------------------------------

func TestTokenManager_MintAndResolve(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Mint(Identity{UserID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := tm.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "u1" || id.Username != "alice" {
		t.Errorf("expected identity u1/alice, got %+v", id)
	}
}

func TestTokenManager_EmptyCredential(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	_, err := tm.Resolve(context.Background(), "")
	if !IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Mint(Identity{UserID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = NewTokenManager("secret-b", time.Hour).Resolve(context.Background(), token)
	if !IsAuthError(err) {
		t.Fatalf("expected AuthError for wrong secret, got %v", err)
	}
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Mint(Identity{UserID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = tm.Resolve(context.Background(), token)
	if !IsAuthError(err) {
		t.Fatalf("expected AuthError for expired token, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Test: in-memory user store
// ---------------------------------------------------------------------------

func TestMemoryStore_CreateAndAuthenticate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.Create(ctx, "alice", "hunter22", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.UserID == "" {
		t.Fatal("expected a generated user ID")
	}

	id, err := s.Authenticate(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != created.UserID {
		t.Errorf("expected user ID %q, got %q", created.UserID, id.UserID)
	}
}

func TestMemoryStore_DuplicateUsername(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, "alice", "hunter22", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Create(ctx, "alice", "other-pass", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestMemoryStore_BadPassword(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, "alice", "hunter22", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
