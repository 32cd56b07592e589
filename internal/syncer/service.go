package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const (
	defaultBatchSize = 20
	defaultPageSize  = 100
)

// Store is the persistence the sync feeds need.
type Store interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	UpdateWatermark(ctx context.Context, accountID string, d domain.SyncDomain, t time.Time) error
	GetActiveListing(ctx context.Context, accountID string, coreProductID int64) (*domain.Listing, error)

	UpsertOrder(ctx context.Context, o *domain.Order) error
	GetOrderByEbayID(ctx context.Context, accountID, ebayOrderID string) (*domain.Order, error)
	GetOrderByCoreID(ctx context.Context, coreOrderID string) (*domain.Order, error)
	SetCoreOrderID(ctx context.Context, id, coreOrderID string) error
	UpdateOrderCoreStatus(ctx context.Context, id string, st domain.OrderStatus) error
	UpsertReturn(ctx context.Context, r *domain.Return) error
	MarkReturnSynced(ctx context.Context, id string) error

	ReplaceCategories(ctx context.Context, country string, cats []domain.Category) error
	ListLeafCategoryIDs(ctx context.Context, country string) ([]string, error)
	ReplaceSpecifics(ctx context.Context, country string, categoryIDs []string, specs []domain.Specific) error
	ReplaceShippingServices(ctx context.Context, country string, svcs []domain.ShippingService) error
}

// Trading is the subset of the eBay API the feeds call.
type Trading interface {
	ebay.OrderLister
	CompleteSale(ctx context.Context, sess ebay.Session, req wire.CompleteSaleRequest) error
	ReviseCheckoutStatus(ctx context.Context, sess ebay.Session, req wire.ReviseCheckoutStatusRequest) error
	IssueRefund(ctx context.Context, sess ebay.Session, req wire.IssueRefundRequest) (*wire.IssueRefundResult, error)
	GeteBayDetails(ctx context.Context, sess ebay.Session, names ...string) (*wire.GeteBayDetailsResult, error)
	GetCategories(ctx context.Context, sess ebay.Session) (*wire.GetCategoriesResult, error)
	GetCategorySpecifics(ctx context.Context, sess ebay.Session, categoryIDs []string) (*wire.GetCategorySpecificsResult, error)
	GetCategoryFeatures(ctx context.Context, sess ebay.Session) (*wire.GetCategoryFeaturesResult, error)
}

// Core is the subset of the core platform API the feeds call.
type Core interface {
	GetChangedProducts(ctx context.Context, coreAccountID string, since time.Time, page int) (*core.Page[core.ProductChange], error)
	GetChangedOrders(ctx context.Context, coreAccountID string, since time.Time, page int) (*core.Page[core.OrderChange], error)
	GetChangedReturns(ctx context.Context, coreAccountID string, since time.Time, page int) (*core.Page[core.ReturnChange], error)
	CreateOrder(ctx context.Context, coreAccountID string, o *domain.Order) (string, error)
}

// ItemUpdater queues price and quantity changes of published listings.
type ItemUpdater interface {
	QueueItemUpdate(
		ctx context.Context,
		l *domain.Listing,
		price *decimal.Decimal,
		quantity *int,
		variations []domain.VariationUpdate,
	) (*domain.ItemUpdate, error)
}

// Syncer runs the sync feeds of every domain.
type Syncer struct {
	store   Store
	trading Trading
	core    Core
	updater ItemUpdater
	queue   tasks.Queue
	log     *slog.Logger
	now     func() time.Time

	skuPrefix      string
	pageSize       int
	maxPages       int
	batchSize      int
	paymentMethods domain.PaymentMethodMapping
}

// Option configures the Syncer.
type Option func(*Syncer)

// WithServiceLogger sets a custom logger.
func WithServiceLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		s.log = l
	}
}

// WithClock overrides the clock that produces watermarks.
func WithClock(f func() time.Time) Option {
	return func(s *Syncer) {
		s.now = f
	}
}

// WithSKUPrefix sets the environment prefix orders are filtered by.
func WithSKUPrefix(p string) Option {
	return func(s *Syncer) {
		s.skuPrefix = p
	}
}

// WithOrderPages sets the GetOrders page size and page cap.
func WithOrderPages(size, maxPages int) Option {
	return func(s *Syncer) {
		if size > 0 {
			s.pageSize = size
		}
		if maxPages > 0 {
			s.maxPages = maxPages
		}
	}
}

// WithBatchSize sets how many categories one GetCategorySpecifics call covers.
func WithBatchSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithPaymentMethods overrides the eBay to core payment method mapping.
func WithPaymentMethods(m domain.PaymentMethodMapping) Option {
	return func(s *Syncer) {
		s.paymentMethods = m
	}
}

// New creates a Syncer. The queue receives order creation tasks.
func New(st Store, t Trading, c Core, u ItemUpdater, q tasks.Queue, opts ...Option) *Syncer {
	s := &Syncer{
		store:          st,
		trading:        t,
		core:           c,
		updater:        u,
		queue:          q,
		log:            slog.Default(),
		now:            time.Now,
		pageSize:       defaultPageSize,
		batchSize:      defaultBatchSize,
		paymentMethods: domain.DefaultPaymentMethods,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Syncer) options() []RunOption {
	return []RunOption{WithLogger(s.log), WithNowFunc(s.now)}
}

func (s *Syncer) watermark(acc *domain.Account, d domain.SyncDomain) func(context.Context) (time.Time, error) {
	return func(context.Context) (time.Time, error) {
		return acc.Watermark(d), nil
	}
}

func (s *Syncer) commit(acc *domain.Account, d domain.SyncDomain) func(context.Context, time.Time) error {
	return func(ctx context.Context, t time.Time) error {
		return s.store.UpdateWatermark(ctx, acc.ID, d, t)
	}
}

func session(acc *domain.Account) ebay.Session {
	var token string
	if acc.Token != nil {
		token = acc.Token.Value
	}
	return ebay.Session{Token: token, SiteID: acc.SiteID}
}
