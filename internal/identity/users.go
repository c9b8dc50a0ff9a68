package identity

import (
	"context"
	"errors"
)

// Account-related errors returned by UserStore implementations.
var (
	ErrUsernameTaken      = errors.New("identity: username already exists")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// UserStore holds registered accounts. Passwords are stored hashed; the
// store never returns them.
type UserStore interface {
	// Create registers a new account. Returns ErrUsernameTaken if the
	// username is in use.
	Create(ctx context.Context, username, password, discordName string) (Identity, error)

	// Authenticate checks a username/password pair and returns the account
	// identity. Returns ErrInvalidCredentials on unknown user or wrong
	// password; callers must not distinguish the two to clients.
	Authenticate(ctx context.Context, username, password string) (Identity, error)
}
