package client

import (
	"context"
	"net/http"
	"time"
)

type ServiceService struct {
	client *Client
}

func (c *Client) Services() *ServiceService {
	return &ServiceService{client: c}
}

// ServiceSummary is one hosted service as the gateway reports it, tagged with
// the account it came from.
type ServiceSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Suspended    string    `json:"suspended,omitempty"`
	DashboardURL string    `json:"dashboardUrl,omitempty"`
	ServiceURL   string    `json:"serviceUrl,omitempty"`
	Region       string    `json:"region,omitempty"`
	Plan         string    `json:"plan,omitempty"`
	Environment  string    `json:"environment,omitempty"`
	AccountID    string    `json:"accountId"`
	AccountName  string    `json:"accountName"`
}

type Deploy struct {
	ID        string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type DeployRequest struct {
	AccountID string `json:"accountId"`
	ServiceID string `json:"serviceId"`
}

// List returns the services of every configured account in the gateway's
// account order.
func (s *ServiceService) List(ctx context.Context) ([]ServiceSummary, error) {
	var services []ServiceSummary
	if err := s.client.do(ctx, http.MethodGet, "api/services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *ServiceService) Deploy(ctx context.Context, accountID, serviceID string) (*Deploy, error) {
	var deploy Deploy
	req := DeployRequest{AccountID: accountID, ServiceID: serviceID}
	if err := s.client.do(ctx, http.MethodPost, "api/deploy", req, &deploy); err != nil {
		return nil, err
	}
	return &deploy, nil
}
