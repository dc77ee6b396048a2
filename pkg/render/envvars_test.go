package render

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEnvVars(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/services/srv-web/env-vars", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"cursor":"c1","envVar":{"key":"DATABASE_URL","value":"postgres://db"}},
			{"cursor":"c2","envVar":{"key":"LOG_LEVEL","value":"debug"}}
		]`))
	})

	vars, err := client.ListEnvVars(context.Background(), testAccount, "srv-web")
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, EnvVar{Key: "DATABASE_URL", Value: "postgres://db"}, vars[0])
	assert.Equal(t, EnvVar{Key: "LOG_LEVEL", Value: "debug"}, vars[1])
}

func TestReplaceAllEnvVars(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/services/srv-web/env-vars", r.URL.Path)
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write([]byte(`[{"cursor":"c1","envVar":{"key":"ONLY","value":"one"}}]`))
	})

	vars, err := client.ReplaceAllEnvVars(context.Background(), testAccount, "srv-web", []EnvVar{{Key: "ONLY", Value: "one"}})
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, EnvVar{Key: "ONLY", Value: "one"}, vars[0])
	assert.JSONEq(t, `[{"key":"ONLY","value":"one"}]`, string(gotBody))
}

func TestReplaceAllEnvVarsEmptySetClears(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write([]byte(`[]`))
	})

	// A nil slice must still reach the upstream as [], not null; an empty
	// set is a legitimate full-replace that wipes every variable.
	vars, err := client.ReplaceAllEnvVars(context.Background(), testAccount, "srv-web", nil)
	require.NoError(t, err)
	assert.Empty(t, vars)
	assert.Equal(t, "[]", string(gotBody))
}

func TestUpsertEnvVar(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/services/srv-web/env-vars/LOG_LEVEL", r.URL.Path)
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write([]byte(`{"key":"LOG_LEVEL","value":"info"}`))
	})

	envVar, err := client.UpsertEnvVar(context.Background(), testAccount, "srv-web", "LOG_LEVEL", "info")
	require.NoError(t, err)
	assert.Equal(t, &EnvVar{Key: "LOG_LEVEL", Value: "info"}, envVar)
	assert.JSONEq(t, `{"value":"info"}`, string(gotBody))
}

func TestDeleteEnvVar(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/services/srv-web/env-vars/STALE_KEY", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.DeleteEnvVar(context.Background(), testAccount, "srv-web", "STALE_KEY")
	require.NoError(t, err)
}

func TestDeleteEnvVarMissingKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"env var not found"}`))
	})

	err := client.DeleteEnvVar(context.Background(), testAccount, "srv-web", "MISSING_KEY")

	// The upstream's 404 must reach the caller, not be swallowed as a
	// successful no-op delete.
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Equal(t, "env var not found", upErr.Message)
}

func TestEnvVarKeyIsPathEscaped(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"key":"ODD KEY","value":"v"}`))
	})

	_, err := client.UpsertEnvVar(context.Background(), testAccount, "srv-web", "ODD KEY", "v")
	require.NoError(t, err)
	assert.Equal(t, "/services/srv-web/env-vars/ODD%20KEY", gotPath)
}
