package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/renderfleet/renderfleet/pkg/account"
)

const envVarPageSize = 100

type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type envVarCursor struct {
	Cursor string `json:"cursor"`
	EnvVar EnvVar `json:"envVar"`
}

type envVarValue struct {
	Value string `json:"value"`
}

// ListEnvVars returns the service's environment variables.
func (c *Client) ListEnvVars(ctx context.Context, acct account.Account, serviceID string) ([]EnvVar, error) {
	endpoint := fmt.Sprintf("services/%s/env-vars?limit=%d", url.PathEscape(serviceID), envVarPageSize)
	var wrapped []envVarCursor
	if err := c.do(ctx, acct, "list_env_vars", http.MethodGet, endpoint, nil, &wrapped); err != nil {
		return nil, err
	}
	return unwrapEnvVars(wrapped), nil
}

// ReplaceAllEnvVars makes vars the service's complete variable set. This is
// a full replace, never a merge: anything upstream that is not in vars is
// gone afterwards, and an empty vars clears the service entirely.
func (c *Client) ReplaceAllEnvVars(ctx context.Context, acct account.Account, serviceID string, vars []EnvVar) ([]EnvVar, error) {
	// A nil slice would encode as JSON null; the upstream wants [].
	if vars == nil {
		vars = []EnvVar{}
	}
	endpoint := fmt.Sprintf("services/%s/env-vars", url.PathEscape(serviceID))
	var wrapped []envVarCursor
	if err := c.do(ctx, acct, "replace_env_vars", http.MethodPut, endpoint, vars, &wrapped); err != nil {
		return nil, err
	}
	return unwrapEnvVars(wrapped), nil
}

// UpsertEnvVar sets one variable by key, creating it if absent and
// overwriting it if present.
func (c *Client) UpsertEnvVar(ctx context.Context, acct account.Account, serviceID, key, value string) (*EnvVar, error) {
	endpoint := fmt.Sprintf("services/%s/env-vars/%s", url.PathEscape(serviceID), url.PathEscape(key))
	var envVar EnvVar
	if err := c.do(ctx, acct, "upsert_env_var", http.MethodPut, endpoint, envVarValue{Value: value}, &envVar); err != nil {
		return nil, err
	}
	return &envVar, nil
}

// DeleteEnvVar removes one variable by key. A key the upstream does not know
// comes back as an UpstreamError; the caller decides whether that matters.
func (c *Client) DeleteEnvVar(ctx context.Context, acct account.Account, serviceID, key string) error {
	endpoint := fmt.Sprintf("services/%s/env-vars/%s", url.PathEscape(serviceID), url.PathEscape(key))
	return c.do(ctx, acct, "delete_env_var", http.MethodDelete, endpoint, nil, nil)
}

func unwrapEnvVars(wrapped []envVarCursor) []EnvVar {
	vars := make([]EnvVar, 0, len(wrapped))
	for _, entry := range wrapped {
		vars = append(vars, entry.EnvVar)
	}
	return vars
}
