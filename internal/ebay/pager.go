package ebay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
)

const (
	defaultPageSize = 100
	defaultMaxPages = 50
)

// OrderLister fetches one page of orders.
type OrderLister interface {
	GetOrders(ctx context.Context, sess Session, q OrdersQuery) (*wire.GetOrdersResult, error)
}

// OrderPager walks GetOrders pages for a fixed modification window.
type OrderPager struct {
	client   OrderLister
	sess     Session
	from, to time.Time
	logger   *slog.Logger
	pageSize int
	maxPages int
}

// PagerOption configures the OrderPager.
type PagerOption func(*OrderPager)

// WithPageSize overrides the default page size.
func WithPageSize(size int) PagerOption {
	return func(p *OrderPager) {
		if size > 0 {
			p.pageSize = size
		}
	}
}

// WithMaxPages overrides the default max pages.
func WithMaxPages(n int) PagerOption {
	return func(p *OrderPager) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithPagerLogger sets the logger.
func WithPagerLogger(l *slog.Logger) PagerOption {
	return func(p *OrderPager) {
		p.logger = l
	}
}

// NewOrderPager creates a pager over orders modified in [from, to).
func NewOrderPager(
	client OrderLister,
	sess Session,
	from, to time.Time,
	opts ...PagerOption,
) *OrderPager {
	p := &OrderPager{
		client:   client,
		sess:     sess,
		from:     from,
		to:       to,
		logger:   slog.Default(),
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Page returns the orders of 1-based page n and whether more pages follow.
// The page cap stops runaway windows; the remainder is picked up by the next
// run because the watermark only advances on a complete pass.
func (p *OrderPager) Page(ctx context.Context, n int) ([]wire.Order, bool, error) {
	if n > p.maxPages {
		return nil, false, fmt.Errorf("order window %s..%s exceeds %d pages",
			wire.FormatTime(p.from), wire.FormatTime(p.to), p.maxPages)
	}

	res, err := p.client.GetOrders(ctx, p.sess, OrdersQuery{
		From:    p.from,
		To:      p.to,
		Page:    n,
		PerPage: p.pageSize,
	})
	if err != nil {
		return nil, false, fmt.Errorf("fetching orders page %d: %w", n, err)
	}

	p.logger.DebugContext(ctx, "fetched orders page",
		"page", n,
		"orders", len(res.Orders),
		"has_more", res.HasMoreOrders,
	)

	more := res.HasMoreOrders && len(res.Orders) > 0
	return res.Orders, more, nil
}
