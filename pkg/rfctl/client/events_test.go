package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventsList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/events/acct-prod/srv-1", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Event{
			{
				ID:        "evt-2",
				Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
				Type:      "deploy_started",
				ServiceID: "srv-1",
				Details:   json.RawMessage(`{"deployId":"dep-42"}`),
			},
			{
				ID:        "evt-1",
				Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				Type:      "suspended",
			},
		})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	events, err := client.Events().List(context.Background(), "acct-prod", "srv-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "evt-2", events[0].ID)
	require.JSONEq(t, `{"deployId":"dep-42"}`, string(events[0].Details))
}

func TestAccountsList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/accounts", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Account{
			{ID: "acct-prod", Name: "production"},
			{ID: "acct-staging", Name: "staging"},
		})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	accounts, err := client.Accounts().List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "production", accounts[0].Name)
}
