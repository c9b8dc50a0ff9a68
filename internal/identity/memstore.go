package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryStore keeps accounts in memory. It backs the server when no
// database is configured; accounts are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]memoryUser // keyed by username
}

type memoryUser struct {
	id   string
	hash []byte
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]memoryUser)}
}

// Create registers a new account with a bcrypt-hashed password.
func (s *MemoryStore) Create(_ context.Context, username, password, _ string) (Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return Identity{}, ErrUsernameTaken
	}
	id := uuid.New().String()
	s.users[username] = memoryUser{id: id, hash: hash}
	return Identity{UserID: id, Username: username}, nil
}

// Authenticate verifies a username/password pair against the stored hash.
func (s *MemoryStore) Authenticate(_ context.Context, username, password string) (Identity, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		return Identity{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: u.id, Username: username}, nil
}
