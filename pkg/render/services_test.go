package render

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceListFixture = `[
  {
    "cursor": "cur-1",
    "service": {
      "id": "srv-web",
      "name": "storefront",
      "type": "web_service",
      "autoDeploy": "yes",
      "suspended": "not_suspended",
      "createdAt": "2026-01-10T12:00:00Z",
      "updatedAt": "2026-02-01T08:30:00Z",
      "dashboardUrl": "https://dashboard.render.com/web/srv-web",
      "ownerId": "usr-a1",
      "serviceDetails": {
        "region": "frankfurt",
        "plan": "starter",
        "env": "node",
        "url": "https://storefront.example.com"
      }
    }
  },
  {
    "cursor": "cur-2",
    "service": {
      "id": "srv-cron",
      "name": "nightly-report",
      "type": "cron_job",
      "autoDeploy": "no",
      "suspended": "suspended",
      "createdAt": "2025-11-03T09:00:00Z",
      "updatedAt": "2025-11-03T09:00:00Z",
      "imagePath": "docker.io/acme/report:latest",
      "ownerId": "usr-a1",
      "serviceDetails": {"region": "oregon", "plan": "starter"}
    }
  }
]`

func TestListServices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/services", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("includePreviews"))
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(serviceListFixture))
	})

	services, err := client.ListServices(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, services, 2)

	web := services[0]
	assert.Equal(t, "srv-web", web.ID)
	assert.Equal(t, "storefront", web.Name)
	assert.Equal(t, "web_service", web.Type)
	assert.Equal(t, "yes", web.AutoDeploy)
	assert.Equal(t, "not_suspended", web.Suspended)
	assert.Equal(t, "https://storefront.example.com", web.ServiceURL)
	assert.Equal(t, "frankfurt", web.Region)
	assert.Equal(t, "starter", web.Plan)
	assert.Equal(t, "node", web.Environment)
	assert.Equal(t, testAccount.ID, web.AccountID)
	assert.Equal(t, testAccount.Name, web.AccountName)

	cron := services[1]
	assert.Equal(t, "srv-cron", cron.ID)
	assert.Equal(t, "suspended", cron.Suspended)
	assert.Equal(t, "docker.io/acme/report:latest", cron.ImagePath)
	assert.Empty(t, cron.ServiceURL)
	assert.Equal(t, testAccount.ID, cron.AccountID)
}

func TestListServicesEmptyAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	services, err := client.ListServices(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Empty(t, services)
	assert.NotNil(t, services)
}

func TestListServicesUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
	})

	_, err := client.ListServices(context.Background(), testAccount)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusUnauthorized, upErr.StatusCode)
}

func TestTriggerDeploy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/services/srv-web/deploys", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, "do_not_clear", req["clearCache"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"dep-123","status":"created","trigger":"api","createdAt":"2026-02-01T10:00:00Z"}`))
	})

	deploy, err := client.TriggerDeploy(context.Background(), testAccount, "srv-web")
	require.NoError(t, err)
	assert.Equal(t, "dep-123", deploy.ID)
	assert.Equal(t, "created", deploy.Status)
	assert.Equal(t, "api", deploy.Trigger)
}

func TestTriggerDeployUnknownService(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"service not found"}`))
	})

	deploy, err := client.TriggerDeploy(context.Background(), testAccount, "srv-nope")
	require.Nil(t, deploy)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Equal(t, "service not found", upErr.Message)
}
