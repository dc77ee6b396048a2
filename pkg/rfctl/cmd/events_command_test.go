package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderfleet/renderfleet/pkg/rfctl/client"
)

func eventsGateway(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/events/acct-prod/srv-1":
			_ = json.NewEncoder(w).Encode([]client.Event{
				{
					ID:        "evt-2",
					Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
					Type:      "deploy_started",
					ServiceID: "srv-1",
				},
				{
					ID:        "evt-1",
					Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
					Type:      "suspended",
					ServiceID: "srv-1",
				},
			})
		case "/api/accounts":
			_ = json.NewEncoder(w).Encode([]client.Account{
				{ID: "acct-prod", Name: "production"},
				{ID: "acct-staging", Name: "staging"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "route not found", "code": "NOT_FOUND"})
		}
	}))
}

func TestEventsCommandTable(t *testing.T) {
	server := eventsGateway(t)
	defer server.Close()

	out, err := runBypass(t, server.URL, "events", "srv-1", "--account", "acct-prod")
	require.NoError(t, err)

	assert.Contains(t, out, "TIMESTAMP")
	assert.Contains(t, out, "deploy_started")
	assert.Contains(t, out, "evt-1")
	// Newest first, as the gateway orders them.
	assert.Less(t, strings.Index(out, "evt-2"), strings.Index(out, "evt-1"))
}

func TestEventsCommandJSON(t *testing.T) {
	server := eventsGateway(t)
	defer server.Close()

	out, err := runBypass(t, server.URL, "events", "srv-1", "--account", "acct-prod", "-o", "json")
	require.NoError(t, err)

	var events []client.Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "evt-2", events[0].ID)
}

func TestEventsCommandRequiresAccount(t *testing.T) {
	server := eventsGateway(t)
	defer server.Close()

	_, err := runBypass(t, server.URL, "events", "srv-1")
	require.Error(t, err)
}

func TestAccountsListCommand(t *testing.T) {
	server := eventsGateway(t)
	defer server.Close()

	out, err := runBypass(t, server.URL, "accounts", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "acct-prod")
	assert.Contains(t, out, "production")
	assert.Contains(t, out, "staging")
}

func TestAccountsListCommandJSON(t *testing.T) {
	server := eventsGateway(t)
	defer server.Close()

	out, err := runBypass(t, server.URL, "accounts", "list", "-o", "json")
	require.NoError(t, err)

	var accounts []client.Account
	require.NoError(t, json.Unmarshal([]byte(out), &accounts))
	require.Len(t, accounts, 2)
}
