// Package auth authenticates the gateway operator. Login validates
// credentials against the configured operator account and mints a session
// through a session.Store; Middleware gates API routes on a live session
// presented as a cookie or bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/config"
	"github.com/renderfleet/renderfleet/pkg/metrics"
	"github.com/renderfleet/renderfleet/pkg/session"
)

const (
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "session"

	AuthHeaderKey = "Authorization"

	// Gin context keys set by Middleware for downstream handlers.
	UsernameKey     = "username"
	SessionTokenKey = "session_token"
	AuthSourceKey   = "authSource"
)

// ErrInvalidCredentials is returned by Login for any bad username/password
// combination. It is deliberately generic: the response must not reveal
// which of the two was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticator checks operator credentials and manages their sessions.
type Authenticator struct {
	log      *zap.SugaredLogger
	username string
	password string
	store    session.Store
}

func New(log *zap.SugaredLogger, operator config.Operator, store session.Store) *Authenticator {
	return &Authenticator{
		log:      log,
		username: operator.Username,
		password: operator.Password,
		store:    store,
	}
}

// Login validates the credentials and, on success, creates a session and
// returns its token. Both fields are compared in constant time and both
// comparisons always run, so response timing does not tell an attacker
// whether the username or the password was the wrong half.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password))
	if userOK&passOK != 1 {
		metrics.LoginFailure.Inc()
		a.log.Warnw("Rejected login attempt", "username", username)
		return "", ErrInvalidCredentials
	}

	token, err := a.store.Create(ctx, username)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	metrics.LoginSuccess.Inc()
	a.log.Infow("Operator logged in", "username", username)
	return token, nil
}

// Logout invalidates the session token. Unknown or empty tokens are a
// no-op, so logout is idempotent.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.store.Invalidate(ctx, token)
}

// Verify reports the session behind token. Middleware rejects outright;
// this is for handlers that soft-check authentication, like the dashboard
// route that falls back to the login form.
func (a *Authenticator) Verify(ctx context.Context, token string) (*session.Session, error) {
	return a.store.Verify(ctx, token)
}

// ExtractSessionToken pulls the session token out of a raw Cookie header.
// Tokens are base64url and never percent-encoded, so splitting the header
// is all the parsing there is.
func ExtractSessionToken(cookieHeader string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, SessionCookieName+"=") {
			return strings.TrimPrefix(part, SessionCookieName+"=")
		}
	}
	return ""
}
