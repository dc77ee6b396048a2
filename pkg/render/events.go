package render

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/renderfleet/renderfleet/pkg/account"
)

// eventPageSize keeps the event feed to the most recent few entries; the
// dashboard shows them as a short activity log, not a full history.
const eventPageSize = 5

// Event is one entry of a service's activity feed. Details varies by event
// type and passes through untouched.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	ServiceID string          `json:"serviceId,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// ListEvents returns the most recent events for the service, newest first,
// as the upstream orders them.
func (c *Client) ListEvents(ctx context.Context, acct account.Account, serviceID string) ([]Event, error) {
	endpoint := fmt.Sprintf("services/%s/events?limit=%d", url.PathEscape(serviceID), eventPageSize)
	var wrapped []struct {
		Cursor string `json:"cursor"`
		Event  Event  `json:"event"`
	}
	if err := c.do(ctx, acct, "list_events", http.MethodGet, endpoint, nil, &wrapped); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(wrapped))
	for _, entry := range wrapped {
		events = append(events, entry.Event)
	}
	return events, nil
}
