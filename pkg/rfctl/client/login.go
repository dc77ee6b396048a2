package client

import (
	"context"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login exchanges operator credentials for a session token. The client does
// not need a token configured; call this on a fresh client and pass the
// result to WithToken on the next one.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "login", loginRequest{Username: username, Password: password}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout invalidates the session server-side. The gateway redirects to the
// login page afterwards, which the HTTP client follows harmlessly.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "logout", nil, nil)
}
