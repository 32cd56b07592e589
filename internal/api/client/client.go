// Package client is the HTTP client of the connector's REST API, used by
// the ebctl command line tool.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout    = 2 * time.Minute
	defaultAuthHeader = "X-Auth-User"
)

// APIError is a non-2xx answer from the connector.
type APIError struct {
	Status int
	Key    string
	Detail any
	Body   string
}

func (e *APIError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("API error (HTTP %d): %s: %v", e.Status, e.Key, e.Detail)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Body)
}

// errorBody matches both the connector's domain errors and Huma's problem
// details.
type errorBody struct {
	Error *struct {
		Key    string `json:"key"`
		Detail any    `json:"detail"`
	} `json:"error"`
	Detail string `json:"detail"`
}

// Client talks to the connector API.
type Client struct {
	baseURL string
	http    *resty.Client
}

type options struct {
	httpClient *http.Client
	user       string
	timeout    time.Duration
}

// Option configures the Client.
type Option func(*options)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithUser sets the identity sent in the trusted auth header.
func WithUser(username string) Option {
	return func(o *options) {
		o.user = username
	}
}

// WithTimeout sets the per-request timeout. Sync triggers block until the
// run finishes, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// New creates a new API client targeting the given base URL.
func New(baseURL string, opts ...Option) *Client {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	hc := resty.New()
	if o.httpClient != nil {
		hc = resty.NewWithClient(o.httpClient)
	}
	base := strings.TrimRight(baseURL, "/")
	hc.SetBaseURL(base).SetTimeout(o.timeout)
	if o.user != "" {
		hc.SetHeader(defaultAuthHeader, o.user)
	}
	return &Client{baseURL: base, http: hc}
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, dst any) error {
	req := c.http.R().SetContext(ctx).SetQueryParams(query)
	return c.send(req, http.MethodGet, path, dst)
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return c.send(req, http.MethodPost, path, dst)
}

func (c *Client) put(ctx context.Context, path string, body, dst any) error {
	req := c.http.R().SetContext(ctx).SetBody(body)
	return c.send(req, http.MethodPut, path, dst)
}

func (c *Client) send(req *resty.Request, method, path string, dst any) error {
	if dst != nil {
		req.SetResult(dst)
	}
	req.SetError(&errorBody{})

	resp, err := req.Execute(method, path)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("API server not running at %s", c.baseURL)
		}
		return fmt.Errorf("sending request: %w", err)
	}

	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
		if eb, ok := resp.Error().(*errorBody); ok {
			switch {
			case eb.Error != nil:
				apiErr.Key, apiErr.Detail = eb.Error.Key, eb.Error.Detail
			case eb.Detail != "":
				apiErr.Body = eb.Detail
			}
		}
		return apiErr
	}
	return nil
}
