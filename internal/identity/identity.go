// Package identity resolves inbound credentials to authenticated users. The
// presence and fan-out core consumes only the resolved (user ID, username)
// pair; how credentials are issued and verified lives entirely here.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Identity is an authenticated participant.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Resolver turns a raw credential into an Identity. Both transports call it
// once per new connection or poll request.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Identity, error)
}

// AuthError marks a bad, missing, or expired credential. A push connection
// carrying one never reaches the online state; poll and send requests are
// answered with a rejection.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Reason, e.Err)
	}
	return "identity: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
