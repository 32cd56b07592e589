// Package ebay is the gateway to the eBay Trading and Inventory Management
// APIs. Every outbound call is signed, rate limited, traced and classified
// into transport and application failures.
package ebay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/metrics"
)

const (
	defaultTradingURL         = "https://api.ebay.com/ws/api.dll"
	defaultInventoryURL       = "https://api.ebay.com/selling/inventory/v1"
	defaultCompatibilityLevel = 1193
	defaultTimeout            = 30 * time.Second

	instrumentationName = "github.com/donaldgifford/ebay-connector/internal/ebay"
)

// Session is the per-call marketplace context: whose token to use and which
// eBay site to address. It is a value; switching sites never mutates the
// caller's copy.
type Session struct {
	Token  string
	SiteID int
}

// WithSite returns a copy of s addressing another site.
func (s Session) WithSite(siteID int) Session {
	s.SiteID = siteID
	return s
}

// Credentials identify the application to eBay.
type Credentials struct {
	DevID  string
	AppID  string
	CertID string
}

// TradingClient executes Trading API and Inventory Management API calls.
type TradingClient struct {
	creds        Credentials
	tradingURL   string
	inventoryURL string
	compatLevel  int
	client       *http.Client
	rateLimiter  *RateLimiter
	logger       *slog.Logger
	tracer       trace.Tracer
	latency      metric.Float64Histogram
}

// TradingOption configures the TradingClient.
type TradingOption func(*TradingClient)

// WithTradingURL overrides the Trading API endpoint.
func WithTradingURL(u string) TradingOption {
	return func(c *TradingClient) {
		if u != "" {
			c.tradingURL = u
		}
	}
}

// WithInventoryURL overrides the Inventory Management API base URL.
func WithInventoryURL(u string) TradingOption {
	return func(c *TradingClient) {
		if u != "" {
			c.inventoryURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCompatibilityLevel overrides the schema version sent with each call.
func WithCompatibilityLevel(level int) TradingOption {
	return func(c *TradingClient) {
		if level > 0 {
			c.compatLevel = level
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) TradingOption {
	return func(c *TradingClient) {
		c.client = hc
	}
}

// WithTimeout sets the fixed per-request timeout.
func WithTimeout(d time.Duration) TradingOption {
	return func(c *TradingClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRateLimiter injects a rate limiter that controls per-second and daily
// API call limits. When set, every call goes through Wait() first.
func WithRateLimiter(r *RateLimiter) TradingOption {
	return func(c *TradingClient) {
		c.rateLimiter = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TradingOption {
	return func(c *TradingClient) {
		c.logger = l
	}
}

// NewTradingClient creates a new eBay Trading API client.
func NewTradingClient(creds Credentials, opts ...TradingOption) *TradingClient {
	c := &TradingClient{
		creds:        creds,
		tradingURL:   defaultTradingURL,
		inventoryURL: defaultInventoryURL,
		compatLevel:  defaultCompatibilityLevel,
		client:       &http.Client{Timeout: defaultTimeout},
		logger:       slog.Default(),
		tracer:       otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	latency, err := otel.Meter(instrumentationName).Float64Histogram(
		"ebay.trading.call.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Latency of eBay API calls."),
	)
	if err == nil {
		c.latency = latency
	}
	return c
}

// Execute performs one Trading API call. req is authenticated with the
// session token and resp receives the decoded body.
func (c *TradingClient) Execute(
	ctx context.Context,
	sess Session,
	call string,
	req wire.Request,
	resp wire.Response,
) error {
	req.Authenticate(sess.Token)

	body, err := wire.Encode(call, req)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", call, err)
	}

	headers := map[string]string{
		"X-EBAY-API-COMPATIBILITY-LEVEL": strconv.Itoa(c.compatLevel),
		"X-EBAY-API-CALL-NAME":           call,
		"X-EBAY-API-SITEID":              strconv.Itoa(sess.SiteID),
		"X-EBAY-API-DEV-NAME":            c.creds.DevID,
		"X-EBAY-API-APP-NAME":            c.creds.AppID,
		"X-EBAY-API-CERT-NAME":           c.creds.CertID,
		"Content-Type":                   "text/xml",
	}

	return c.roundTrip(ctx, sess, call, c.tradingURL, headers, body, resp)
}

// ExecuteInventory performs one Inventory Management API call. The root
// element is call+"Request" in the inventory namespace.
func (c *TradingClient) ExecuteInventory(
	ctx context.Context,
	sess Session,
	call string,
	req any,
	resp wire.Response,
) error {
	body, err := wire.EncodeNS(wire.InventoryNamespace, call+"Request", req)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", call, err)
	}

	headers := map[string]string{
		"X-EBAY-API-IAF-TOKEN": sess.Token,
		"X-EBAY-API-SITE-ID":   strconv.Itoa(sess.SiteID),
		"X-EBAY-API-CALL-NAME": call,
		"Content-Type":         "text/xml",
	}

	return c.roundTrip(ctx, sess, call, c.inventoryURL+"/"+call, headers, body, resp)
}

func (c *TradingClient) roundTrip(
	ctx context.Context,
	sess Session,
	call, endpoint string,
	headers map[string]string,
	body []byte,
	resp wire.Response,
) (err error) {
	ctx, span := c.tracer.Start(ctx, "ebay."+call, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ebay.call", call),
			attribute.Int("ebay.site_id", sess.SiteID),
		))
	start := time.Now()
	defer func() {
		elapsed := time.Since(start).Seconds()
		outcome := outcomeOf(err)
		metrics.EbayAPICallsTotal.WithLabelValues(call, outcome).Inc()
		metrics.EbayAPICallDuration.WithLabelValues(call).Observe(elapsed)
		if c.latency != nil {
			c.latency.Record(ctx, elapsed, metric.WithAttributes(
				attribute.String("ebay.call", call),
				attribute.String("outcome", outcome),
			))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	if c.rateLimiter != nil {
		if werr := c.rateLimiter.Wait(ctx); werr != nil {
			if errors.Is(werr, ErrDailyLimitReached) {
				metrics.EbayDailyLimitHits.Inc()
			}
			return &TransportError{Call: call, Err: fmt.Errorf("rate limit: %w", werr)}
		}
		metrics.EbayDailyUsage.Set(float64(c.rateLimiter.DailyCount()))
	}

	ex := exchangeFrom(ctx)
	ex.recordRequest(body, sess.Token)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return &TransportError{Call: call, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &TransportError{Call: call, Err: fmt.Errorf("reading response body: %w", err)}
	}
	ex.recordResponse(raw)
	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))

	if httpResp.StatusCode >= http.StatusInternalServerError ||
		httpResp.StatusCode == http.StatusTooManyRequests {
		return &TransportError{Call: call, Status: httpResp.StatusCode}
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("eBay %s: unexpected status %d: %s", call, httpResp.StatusCode, truncate(raw, 512))
	}

	if err := wire.Decode(raw, resp); err != nil {
		return fmt.Errorf("eBay %s: %w", call, err)
	}

	base := resp.Base()
	if base.Failed() {
		return classify(call, base)
	}
	for _, w := range base.Warnings() {
		c.logger.WarnContext(ctx, "eBay call returned a warning",
			"call", call,
			"code", w.ErrorCode,
			"message", w.ShortMessage,
		)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsTransport(err):
		return "transport_error"
	default:
		if _, ok := AsApplication(err); ok {
			return "application_error"
		}
		return "error"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
