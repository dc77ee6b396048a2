package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/audit"
	"github.com/renderfleet/renderfleet/pkg/auth"
	"github.com/renderfleet/renderfleet/pkg/config"
	"github.com/renderfleet/renderfleet/pkg/gateway"
	"github.com/renderfleet/renderfleet/pkg/render"
	rfctl "github.com/renderfleet/renderfleet/pkg/rfctl/client"
	"github.com/renderfleet/renderfleet/pkg/session/sqlitestore"
)

const (
	operatorUser     = "admin"
	operatorPassword = "swordfish"

	prodAPIKey    = "rnd-key-prod"
	stagingAPIKey = "rnd-key-staging"
)

type upstreamServiceDetails struct {
	Region string `json:"region"`
	Plan   string `json:"plan"`
	Env    string `json:"env"`
	URL    string `json:"url,omitempty"`
}

type upstreamService struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Type           string                 `json:"type"`
	Suspended      string                 `json:"suspended"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	ServiceDetails upstreamServiceDetails `json:"serviceDetails"`
}

type upstreamEvent struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Details   json.RawMessage `json:"details,omitempty"`
}

type upstreamAccount struct {
	services []upstreamService
	envVars  map[string][]render.EnvVar
	events   map[string][]upstreamEvent
	deploys  []string
}

// fakeUpstream speaks just enough of the hosting API's wire format for the
// gateway's client: bearer API keys, cursor-wrapped listings, error bodies
// with a message field. State is mutable so tests can verify write semantics.
type fakeUpstream struct {
	srv *httptest.Server

	mu        sync.Mutex
	accounts  map[string]*upstreamAccount // keyed by API key
	failing   map[string]bool             // API keys answering 500
	deploySeq int
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{
		accounts: map[string]*upstreamAccount{
			prodAPIKey: {
				services: []upstreamService{
					{
						ID:        "srv-web-1",
						Name:      "billing-api",
						Type:      "web_service",
						Suspended: "not_suspended",
						UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
						ServiceDetails: upstreamServiceDetails{
							Region: "oregon",
							Plan:   "starter",
							Env:    "production",
							URL:    "https://billing-api.example.com",
						},
					},
					{
						ID:        "srv-cron-1",
						Name:      "nightly-report",
						Type:      "cron_job",
						Suspended: "not_suspended",
						UpdatedAt: time.Date(2026, 2, 20, 4, 30, 0, 0, time.UTC),
						ServiceDetails: upstreamServiceDetails{
							Region: "oregon",
							Plan:   "starter",
							Env:    "production",
						},
					},
				},
				envVars: map[string][]render.EnvVar{
					"srv-web-1": {
						{Key: "DATABASE_URL", Value: "postgres://billing"},
						{Key: "LOG_LEVEL", Value: "info"},
					},
				},
				events: map[string][]upstreamEvent{
					"srv-web-1": {
						{
							ID:        "evt-2",
							Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
							Type:      "deploy_started",
							Details:   json.RawMessage(`{"deployId":"dep-9"}`),
						},
						{
							ID:        "evt-1",
							Timestamp: time.Date(2026, 2, 28, 18, 0, 0, 0, time.UTC),
							Type:      "build_ended",
						},
					},
				},
			},
			stagingAPIKey: {
				services: []upstreamService{
					{
						ID:        "srv-web-9",
						Name:      "billing-api",
						Type:      "web_service",
						Suspended: "suspended",
						UpdatedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
						ServiceDetails: upstreamServiceDetails{
							Region: "frankfurt",
							Plan:   "free",
							Env:    "staging",
						},
					},
				},
				envVars: map[string][]render.EnvVar{},
				events:  map[string][]upstreamEvent{},
			},
		},
		failing: map[string]bool{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	acct, ok := f.accounts[key]
	if !ok {
		writeUpstreamError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	if f.failing[key] {
		writeUpstreamError(w, http.StatusInternalServerError, "synthetic upstream outage")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "services" && r.Method == http.MethodGet:
		f.listServices(w, acct)
	case len(parts) == 3 && parts[0] == "services" && parts[2] == "deploys" && r.Method == http.MethodPost:
		f.triggerDeploy(w, r, acct, parts[1])
	case len(parts) == 3 && parts[0] == "services" && parts[2] == "events" && r.Method == http.MethodGet:
		f.listEvents(w, acct, parts[1])
	case len(parts) == 3 && parts[0] == "services" && parts[2] == "env-vars":
		f.envVarsCollection(w, r, acct, parts[1])
	case len(parts) == 4 && parts[0] == "services" && parts[2] == "env-vars":
		f.envVarsItem(w, r, acct, parts[1], parts[3])
	default:
		writeUpstreamError(w, http.StatusNotFound, "no such endpoint")
	}
}

func (f *fakeUpstream) listServices(w http.ResponseWriter, acct *upstreamAccount) {
	entries := make([]map[string]any, 0, len(acct.services))
	for _, svc := range acct.services {
		entries = append(entries, map[string]any{"cursor": svc.ID, "service": svc})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (f *fakeUpstream) triggerDeploy(w http.ResponseWriter, r *http.Request, acct *upstreamAccount, serviceID string) {
	if !hasService(acct, serviceID) {
		writeUpstreamError(w, http.StatusNotFound, "service not found")
		return
	}
	var body struct {
		ClearCache string `json:"clearCache"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ClearCache != "do_not_clear" {
		writeUpstreamError(w, http.StatusBadRequest, "unexpected clearCache value")
		return
	}
	f.deploySeq++
	acct.deploys = append(acct.deploys, serviceID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        fmt.Sprintf("dep-%d", f.deploySeq),
		"status":    "build_in_progress",
		"trigger":   "api",
		"createdAt": time.Now().UTC(),
	})
}

func (f *fakeUpstream) listEvents(w http.ResponseWriter, acct *upstreamAccount, serviceID string) {
	entries := make([]map[string]any, 0)
	for _, evt := range acct.events[serviceID] {
		entries = append(entries, map[string]any{"cursor": evt.ID, "event": evt})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (f *fakeUpstream) envVarsCollection(w http.ResponseWriter, r *http.Request, acct *upstreamAccount, serviceID string) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, wrapEnvVars(acct.envVars[serviceID]))
	case http.MethodPut:
		var vars []render.EnvVar
		if err := json.NewDecoder(r.Body).Decode(&vars); err != nil || vars == nil {
			// The hosting API rejects JSON null; a clear must arrive as [].
			writeUpstreamError(w, http.StatusBadRequest, "body must be an array of env vars")
			return
		}
		acct.envVars[serviceID] = vars
		writeJSON(w, http.StatusOK, wrapEnvVars(vars))
	default:
		writeUpstreamError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

func (f *fakeUpstream) envVarsItem(w http.ResponseWriter, r *http.Request, acct *upstreamAccount, serviceID, key string) {
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeUpstreamError(w, http.StatusBadRequest, "body must carry a value")
			return
		}
		vars := acct.envVars[serviceID]
		replaced := false
		for i := range vars {
			if vars[i].Key == key {
				vars[i].Value = body.Value
				replaced = true
				break
			}
		}
		if !replaced {
			vars = append(vars, render.EnvVar{Key: key, Value: body.Value})
		}
		acct.envVars[serviceID] = vars
		writeJSON(w, http.StatusOK, render.EnvVar{Key: key, Value: body.Value})
	case http.MethodDelete:
		vars := acct.envVars[serviceID]
		kept := make([]render.EnvVar, 0, len(vars))
		found := false
		for _, v := range vars {
			if v.Key == key {
				found = true
				continue
			}
			kept = append(kept, v)
		}
		if !found {
			writeUpstreamError(w, http.StatusNotFound, "env var not found")
			return
		}
		acct.envVars[serviceID] = kept
		w.WriteHeader(http.StatusNoContent)
	default:
		writeUpstreamError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

// setFailing makes every request authenticated with apiKey answer 500 until
// cleared again.
func (f *fakeUpstream) setFailing(apiKey string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[apiKey] = failing
}

func (f *fakeUpstream) envVarsFor(apiKey, serviceID string) []render.EnvVar {
	f.mu.Lock()
	defer f.mu.Unlock()
	vars := f.accounts[apiKey].envVars[serviceID]
	out := make([]render.EnvVar, len(vars))
	copy(out, vars)
	return out
}

func (f *fakeUpstream) deploysFor(apiKey string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	deploys := f.accounts[apiKey].deploys
	out := make([]string, len(deploys))
	copy(out, deploys)
	return out
}

func hasService(acct *upstreamAccount, serviceID string) bool {
	for _, svc := range acct.services {
		if svc.ID == serviceID {
			return true
		}
	}
	return false
}

func wrapEnvVars(vars []render.EnvVar) []map[string]any {
	entries := make([]map[string]any, 0, len(vars))
	for _, v := range vars {
		entries = append(entries, map[string]any{"cursor": v.Key, "envVar": v})
	}
	return entries
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeUpstreamError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// gatewayHarness is one fully wired gateway on a real listener, with the
// hosting API swapped for the in-process fake.
type gatewayHarness struct {
	URL      string
	upstream *fakeUpstream
}

// startGateway assembles the gateway the way the server binary does: real
// router, sqlite session store, authenticator, upstream client and audit
// pipeline, then serves it over HTTP.
func startGateway(t *testing.T) *gatewayHarness {
	t.Helper()

	upstream := newFakeUpstream(t)
	log := zaptest.NewLogger(t)

	cfg := config.Config{
		Operator: config.Operator{Username: operatorUser, Password: operatorPassword},
		Accounts: []config.Account{
			{ID: "acct-prod", Name: "production", APIKey: prodAPIKey},
			{ID: "acct-staging", Name: "staging", APIKey: stagingAPIKey},
		},
		Session: config.Session{TTL: "1h", Namespace: "e2e", StorePath: ":memory:"},
		Render:  config.Render{APIBaseURL: upstream.srv.URL, RequestTimeout: "5s"},
	}
	require.NoError(t, cfg.Validate())

	store, err := sqlitestore.Open(cfg.Session.StorePath, cfg.Session.Namespace, cfg.Session.GetTTL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	accounts := make([]account.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts = append(accounts, account.Account{ID: a.ID, Name: a.Name, APIKey: a.APIKey})
	}
	registry, err := account.NewRegistry(accounts)
	require.NoError(t, err)

	authenticator := auth.New(log.Sugar(), cfg.Operator, store)

	upstreamClient, err := render.New(
		render.WithBaseURL(cfg.Render.APIBaseURL),
		render.WithTimeout(cfg.Render.GetRequestTimeout()),
	)
	require.NoError(t, err)

	auditService := audit.NewService(log)
	require.NoError(t, auditService.Configure(audit.Config{Enabled: true, Log: true}))
	t.Cleanup(func() { _ = auditService.Close() })

	server := gateway.NewServer(log, cfg, false)
	middleware := authenticator.Middleware()
	require.NoError(t, server.RegisterAll([]gateway.APIController{
		gateway.NewServicesAPIController(log.Sugar(), upstreamClient, registry, auditService, middleware),
		gateway.NewEnvVarsAPIController(log.Sugar(), upstreamClient, registry, auditService, middleware),
		gateway.NewEventsAPIController(log.Sugar(), upstreamClient, registry, auditService, middleware),
		gateway.NewMetaAPIController(log.Sugar(), registry, middleware),
	}))
	server.RegisterWeb(gateway.NewWebController(log.Sugar(), authenticator, auditService, registry, cfg))

	httpSrv := httptest.NewServer(server.Handler())
	t.Cleanup(httpSrv.Close)

	return &gatewayHarness{URL: httpSrv.URL, upstream: upstream}
}

// loginOperator logs in through the real login endpoint and returns a client
// carrying the minted session token.
func loginOperator(t *testing.T, h *gatewayHarness) *rfctl.Client {
	t.Helper()

	anon, err := rfctl.New(rfctl.WithServer(h.URL))
	require.NoError(t, err)

	result, err := anon.Login(context.Background(), operatorUser, operatorPassword)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, operatorUser, result.Username)

	authed, err := rfctl.New(rfctl.WithServer(h.URL), rfctl.WithToken(result.Token))
	require.NoError(t, err)
	return authed
}
