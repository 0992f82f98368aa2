// Package gateway defines the external identity verification collaborator.
// The core only consumes the resulting identity projection; token refresh
// and raw token storage live behind the implementation.
package gateway

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/evzone-io/go-session-core/identity"
)

var (
	// ErrInvalidCredentials is the only gateway error intended to reach the
	// UI as a displayable message.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable reports that the auth service cannot be reached (or the
	// circuit breaker is open).
	ErrUnavailable = errors.New("authentication service unavailable")
)

// Credentials carries a login attempt.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is what a successful authentication yields: the identity
// projection the session core will act as, plus the session tokens the
// gateway implementation manages on its own.
type LoginResult struct {
	Identity identity.Identity
	Token    *oauth2.Token
}

// Gateway verifies identities against the platform auth API.
type Gateway interface {
	// Login exchanges credentials for an identity projection.
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)

	// Logout revokes the server-side session. Best effort: callers log
	// failures and proceed with local teardown regardless.
	Logout(ctx context.Context) error
}
