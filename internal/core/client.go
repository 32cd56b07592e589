// Package core is the client of the internal e-commerce platform's REST API:
// product snapshots, stock levels, change feeds for products, orders and
// returns, order creation and account settings.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultPageSize = 100
)

// ErrNotFound is returned when the core platform answers 404.
var ErrNotFound = errors.New("core: not found")

// Error is a non-2xx answer from the core platform. 5xx answers are
// retryable.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("core %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Retryable marks server-side failures for the task runner.
func (e *Error) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// Page is one page of a core change feed.
type Page[T any] struct {
	Results []T  `json:"results"`
	HasMore bool `json:"has_more"`
}

// ProductChange is one entry of the product change feed.
type ProductChange struct {
	ID         int64           `json:"id"`
	GrossPrice decimal.Decimal `json:"gross_price"`
	Quantity   int             `json:"quantity"`
	Variants   []VariantChange `json:"variants,omitempty"`
	ModifiedAt time.Time       `json:"modified_at"`
}

// VariantChange is the stock of one variant inside a ProductChange.
type VariantChange struct {
	ID         int64           `json:"id"`
	GrossPrice decimal.Decimal `json:"gross_price"`
	Quantity   int             `json:"quantity"`
}

// OrderChange is one entry of the order change feed.
type OrderChange struct {
	ID             string             `json:"id"`
	Status         domain.OrderStatus `json:"status"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
	Carrier        string             `json:"carrier,omitempty"`
	ModifiedAt     time.Time          `json:"modified_at"`
}

// ReturnChange is one entry of the return change feed.
type ReturnChange struct {
	ID           string            `json:"id"`
	OrderID      string            `json:"order_id"`
	RefundAmount decimal.Decimal   `json:"refund_amount"`
	RefundType   domain.RefundType `json:"refund_type"`
	Note         string            `json:"note,omitempty"`
	ModifiedAt   time.Time         `json:"modified_at"`
}

// Client talks to the core platform.
type Client struct {
	http     *resty.Client
	pageSize int
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithPageSize sets the page size requested from change feeds.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for the core API rooted at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "ebay-connector").
			SetAuthScheme("Token").
			SetAuthToken(apiKey),
		pageSize: defaultPageSize,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProduct returns the current snapshot of a product.
func (c *Client) GetProduct(ctx context.Context, coreAccountID string, id int64) (*domain.Product, error) {
	var p domain.Product
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"account": coreAccountID,
			"id":      strconv.FormatInt(id, 10),
		}).
		SetResult(&p).
		Get("/accounts/{account}/products/{id}")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

type quantitiesRequest struct {
	IDs []int64 `json:"ids"`
}

type quantitiesResponse struct {
	Quantities map[string]int `json:"quantities"`
}

// GetQuantities returns the stock of every requested product in one call.
// Products unknown to the core platform are absent from the result.
func (c *Client) GetQuantities(ctx context.Context, coreAccountID string, ids []int64) (map[int64]int, error) {
	if len(ids) == 0 {
		return map[int64]int{}, nil
	}

	var out quantitiesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account", coreAccountID).
		SetBody(quantitiesRequest{IDs: ids}).
		SetResult(&out).
		Post("/accounts/{account}/products/quantities")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("getting quantities: %w", err)
	}

	qty := make(map[int64]int, len(out.Quantities))
	for k, v := range out.Quantities {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("getting quantities: bad product id %q", k)
		}
		qty[id] = v
	}
	return qty, nil
}

// GetChangedProducts returns one page of products modified since.
func (c *Client) GetChangedProducts(
	ctx context.Context,
	coreAccountID string,
	since time.Time,
	page int,
) (*Page[ProductChange], error) {
	return getPage[ProductChange](ctx, c, "/accounts/{account}/products/changes", coreAccountID, since, page)
}

// GetChangedOrders returns one page of core orders modified since.
func (c *Client) GetChangedOrders(
	ctx context.Context,
	coreAccountID string,
	since time.Time,
	page int,
) (*Page[OrderChange], error) {
	return getPage[OrderChange](ctx, c, "/accounts/{account}/orders/changes", coreAccountID, since, page)
}

// GetChangedReturns returns one page of returns modified since.
func (c *Client) GetChangedReturns(
	ctx context.Context,
	coreAccountID string,
	since time.Time,
	page int,
) (*Page[ReturnChange], error) {
	return getPage[ReturnChange](ctx, c, "/accounts/{account}/returns/changes", coreAccountID, since, page)
}

func getPage[T any](
	ctx context.Context,
	c *Client,
	path, coreAccountID string,
	since time.Time,
	page int,
) (*Page[T], error) {
	var out Page[T]
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account", coreAccountID).
		SetQueryParams(map[string]string{
			"modified_since": since.UTC().Format(time.RFC3339Nano),
			"page":           strconv.Itoa(max(page, 1)),
			"page_size":      strconv.Itoa(c.pageSize),
		}).
		SetResult(&out).
		Get(path)
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("getting change page %d: %w", page, err)
	}
	return &out, nil
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder mirrors an eBay order on the core platform and returns the
// core order id.
func (c *Client) CreateOrder(ctx context.Context, coreAccountID string, o *domain.Order) (string, error) {
	var out createOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account", coreAccountID).
		SetHeader("Idempotency-Key", o.AccountID+":"+o.EbayOrderID).
		SetBody(o).
		SetResult(&out).
		Post("/accounts/{account}/orders")
	if err := c.check(resp, err); err != nil {
		return "", fmt.Errorf("creating order %s: %w", o.EbayOrderID, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("creating order %s: empty order id", o.EbayOrderID)
	}
	return out.ID, nil
}

// GetAccountSettings returns the core platform's settings for an account.
func (c *Client) GetAccountSettings(ctx context.Context, coreAccountID string) (*domain.AccountSettings, error) {
	var s domain.AccountSettings
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account", coreAccountID).
		SetResult(&s).
		Get("/accounts/{account}/settings")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("getting account settings: %w", err)
	}
	return &s, nil
}

// check turns transport failures and non-2xx answers into errors. Network
// failures are reported as retryable 503s.
func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		return &Error{Status: http.StatusServiceUnavailable, Body: err.Error()}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		e := &Error{
			Method: resp.Request.Method,
			Path:   resp.Request.URL,
			Status: resp.StatusCode(),
			Body:   truncate(resp.String(), 512),
		}
		c.log.Warn("core request failed", "method", e.Method, "path", e.Path, "status", e.Status)
		return e
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
