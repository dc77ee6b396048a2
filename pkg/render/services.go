package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/metrics"
)

// servicePageSize bounds one listing call. Accounts here hold tens of
// services, not thousands, so a single page is the whole fleet.
const servicePageSize = 100

// Service is the upstream's service record as Render returns it, with the
// per-type details nested under serviceDetails.
type Service struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	AutoDeploy     string         `json:"autoDeploy"`
	Suspended      string         `json:"suspended"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DashboardURL   string         `json:"dashboardUrl"`
	ImagePath      string         `json:"imagePath"`
	OwnerID        string         `json:"ownerId"`
	ServiceDetails ServiceDetails `json:"serviceDetails"`
}

type ServiceDetails struct {
	Region string `json:"region"`
	Plan   string `json:"plan"`
	Env    string `json:"env"`
	URL    string `json:"url"`
}

// ServiceSummary is the flattened projection the gateway serves: the service
// fields operators act on, plus the originating account so identically named
// services across accounts stay distinguishable.
type ServiceSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	AutoDeploy   string    `json:"autoDeploy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Suspended    string    `json:"suspended,omitempty"`
	DashboardURL string    `json:"dashboardUrl,omitempty"`
	ServiceURL   string    `json:"serviceUrl,omitempty"`
	Region       string    `json:"region,omitempty"`
	Plan         string    `json:"plan,omitempty"`
	Environment  string    `json:"environment,omitempty"`
	ImagePath    string    `json:"imagePath,omitempty"`
	OwnerID      string    `json:"ownerId,omitempty"`
	AccountID    string    `json:"accountId"`
	AccountName  string    `json:"accountName"`
}

// Deploy is the handle Render returns for a triggered deploy. Callers only
// depend on ID; the rest is carried for display.
type Deploy struct {
	ID        string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type deployRequest struct {
	ClearCache string `json:"clearCache"`
}

// ListServices fetches the account's services, previews included, and
// projects each to a ServiceSummary tagged with the account.
func (c *Client) ListServices(ctx context.Context, acct account.Account) ([]ServiceSummary, error) {
	endpoint := fmt.Sprintf("services?includePreviews=true&limit=%d", servicePageSize)
	var wrapped []struct {
		Cursor  string  `json:"cursor"`
		Service Service `json:"service"`
	}
	if err := c.do(ctx, acct, "list_services", http.MethodGet, endpoint, nil, &wrapped); err != nil {
		return nil, err
	}
	summaries := make([]ServiceSummary, 0, len(wrapped))
	for _, entry := range wrapped {
		summaries = append(summaries, summarize(acct, entry.Service))
	}
	return summaries, nil
}

// TriggerDeploy starts a deploy for the service without clearing the build
// cache. The deploy runs to completion upstream regardless of what happens
// to this process afterwards.
func (c *Client) TriggerDeploy(ctx context.Context, acct account.Account, serviceID string) (*Deploy, error) {
	endpoint := fmt.Sprintf("services/%s/deploys", url.PathEscape(serviceID))
	var deploy Deploy
	if err := c.do(ctx, acct, "trigger_deploy", http.MethodPost, endpoint, deployRequest{ClearCache: "do_not_clear"}, &deploy); err != nil {
		return nil, err
	}
	metrics.DeploysTriggered.WithLabelValues(acct.ID).Inc()
	return &deploy, nil
}

func summarize(acct account.Account, svc Service) ServiceSummary {
	return ServiceSummary{
		ID:           svc.ID,
		Name:         svc.Name,
		Type:         svc.Type,
		AutoDeploy:   svc.AutoDeploy,
		CreatedAt:    svc.CreatedAt,
		UpdatedAt:    svc.UpdatedAt,
		Suspended:    svc.Suspended,
		DashboardURL: svc.DashboardURL,
		ServiceURL:   svc.ServiceDetails.URL,
		Region:       svc.ServiceDetails.Region,
		Plan:         svc.ServiceDetails.Plan,
		Environment:  svc.ServiceDetails.Env,
		ImagePath:    svc.ImagePath,
		OwnerID:      svc.OwnerID,
		AccountID:    acct.ID,
		AccountName:  acct.Name,
	}
}
