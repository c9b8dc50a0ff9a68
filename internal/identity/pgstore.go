package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// PostgresStore persists accounts in the users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a user store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create registers a new account with a bcrypt-hashed password.
func (s *PostgresStore) Create(ctx context.Context, username, password, discordName string) (Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: hash password: %w", err)
	}

	id := uuid.New().String()
	const query = `
		INSERT INTO users (id, username, password_hash, discord_name)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, query, id, username, hash, discordName); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return Identity{}, ErrUsernameTaken
		}
		return Identity{}, fmt.Errorf("identity: insert user: %w", err)
	}
	return Identity{UserID: id, Username: username}, nil
}

// Authenticate verifies a username/password pair against the stored hash.
func (s *PostgresStore) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	const query = `
		SELECT id, password_hash
		FROM users
		WHERE username = $1`

	var (
		id   string
		hash []byte
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("identity: query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: id, Username: username}, nil
}
