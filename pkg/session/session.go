// Package session persists operator login sessions. It defines the Store
// interface plus two backends: a durable sqlite store (sqlitestore
// subpackage) and an in-memory store for tests and ephemeral deployments.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is how long a session stays valid when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by Verify when the token matches no live session.
// Store failures are reported as distinct errors so callers can tell an
// unauthenticated request from a broken backend; both must fail closed.
var ErrNotFound = errors.New("session not found or expired")

// Session is one operator login. Sessions are immutable: there is no touch
// or extend operation, a login is good for its TTL and then it is gone.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store persists sessions.
type Store interface {
	// Create mints a session for username and returns its opaque token.
	Create(ctx context.Context, username string) (string, error)

	// Verify returns the session for token if it exists and has not
	// expired. Expired sessions are deleted on sight and reported as
	// ErrNotFound, so the store is self-cleaning even without a sweeper.
	Verify(ctx context.Context, token string) (*Session, error)

	// Invalidate removes the session. Unknown tokens are not an error.
	Invalidate(ctx context.Context, token string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// NewToken returns a fresh session token: 32 bytes from crypto/rand,
// base64url-encoded, 256 bits of entropy.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
