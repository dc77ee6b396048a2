package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/renderfleet/renderfleet/pkg/apiresponses"
	"github.com/renderfleet/renderfleet/pkg/metrics"
	"github.com/renderfleet/renderfleet/pkg/session"
)

// Middleware returns a gin handler that rejects requests without a live
// session. The token is taken from the session cookie first, then from a
// Bearer Authorization header; browser clients use the cookie, rfctl and
// scripts use the header.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := ExtractSessionToken(c.GetHeader("Cookie"))
		source := "cookie"

		authHeader := c.GetHeader(AuthHeaderKey)
		// delete the header so the credential cannot end up in logs
		c.Request.Header.Del(AuthHeaderKey)
		if token == "" && strings.HasPrefix(authHeader, "Bearer ") {
			token = authHeader[7:]
			source = "bearer"
		}

		if token == "" {
			metrics.SessionsRejected.WithLabelValues("missing_token").Inc()
			apiresponses.RespondUnauthorized(c)
			c.Abort()
			return
		}

		sess, err := a.store.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				metrics.SessionsRejected.WithLabelValues("invalid_token").Inc()
			} else {
				// A broken store fails closed: better to lock the
				// operator out than to wave requests through.
				a.log.Errorw("Session verification failed", "error", err)
				metrics.SessionsRejected.WithLabelValues("store_error").Inc()
			}
			apiresponses.RespondUnauthorized(c)
			c.Abort()
			return
		}

		c.Set(UsernameKey, sess.Username)
		c.Set(SessionTokenKey, token)
		c.Set(AuthSourceKey, source)
		c.Next()
	}
}
