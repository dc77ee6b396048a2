package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/metrics"
)

// DefaultBaseURL is the production Render API endpoint.
const DefaultBaseURL = "https://api.render.com/v1"

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: "renderfleet",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		parsed, err := url.Parse(DefaultBaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid default base URL")
		}
		c.baseURL = parsed
	}
	return c, nil
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return errors.New("base URL is required")
		}
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return errors.Wrap(err, "invalid base URL")
		}
		c.baseURL = parsed
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		c.http.Timeout = timeout
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

// do issues one request on behalf of acct. operation is the metric label,
// endpoint is relative to the base URL and may carry a query string. Non-2xx
// responses come back as *UpstreamError; nothing is retried.
func (c *Client) do(ctx context.Context, acct account.Account, operation, method, endpoint string, body, out any) error {
	fullURL := *c.baseURL
	parsedEndpoint, err := url.Parse(endpoint)
	if err != nil {
		return errors.Wrap(err, "invalid endpoint")
	}
	fullURL.Path = path.Join(fullURL.Path, parsedEndpoint.Path)
	if parsedEndpoint.RawQuery != "" {
		fullURL.RawQuery = parsedEndpoint.RawQuery
	}

	var payload io.Reader
	if body != nil {
		bytesBody, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		payload = bytes.NewReader(bytesBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Authorization", "Bearer "+acct.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(acct.ID, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(acct.ID, operation, "transport_error").Inc()
		return errors.Wrap(err, "upstream request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	metrics.UpstreamRequests.WithLabelValues(acct.ID, operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError turns a non-2xx response into an *UpstreamError. Render error
// bodies carry a "message" field; "error" and the raw body are fallbacks for
// proxies in the path that answer with their own envelope.
func decodeError(resp *http.Response) error {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Error)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}
	return &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
}

// UpstreamError is any non-2xx answer from the hosting API. The gateway
// flattens these to 500 and folds the upstream status into the message, so
// Error() is what operators end up seeing.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed (%d): %s", e.StatusCode, e.Message)
}
