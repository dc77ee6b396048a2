package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type EventService struct {
	client *Client
}

func (c *Client) Events() *EventService {
	return &EventService{client: c}
}

// Event is one service event, newest first as the gateway returns them.
// Details keeps the upstream payload verbatim for JSON output.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	ServiceID string          `json:"serviceId,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

func (s *EventService) List(ctx context.Context, accountRef, serviceID string) ([]Event, error) {
	endpoint := fmt.Sprintf("api/events/%s/%s", url.PathEscape(accountRef), url.PathEscape(serviceID))
	var events []Event
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}
