// Package publish owns the listing lifecycle: validation, preparation of
// listing snapshots, publishing to eBay, unpublishing and price/quantity
// updates of published listings.
//
//	draft ─submit─▶ in_progress ─▶ published ─▶ unpublished
//	  ▲                 │
//	  └──── failed ◀────┘
//
// Publishing runs as a background task; transport failures are retried by
// the task executor, eBay rejections fail the listing immediately.
package publish

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/inventory"
	"github.com/donaldgifford/ebay-connector/internal/notify"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Store is the persistence the publishing state machine needs.
type Store interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetCategory(ctx context.Context, country, id string) (*domain.Category, error)
	ListSpecifics(ctx context.Context, country, categoryID string) ([]domain.Specific, error)

	CreateListing(ctx context.Context, l *domain.Listing) error
	UpdateListingSnapshot(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	GetActiveListing(ctx context.Context, accountID string, coreProductID int64) (*domain.Listing, error)
	GetListingByEbayItemID(ctx context.Context, ebayItemID string) (*domain.Listing, error)
	TransitionListing(ctx context.Context, id string, from []domain.PublishingStatus, to domain.PublishingStatus) error
	MarkListingPublished(ctx context.Context, id, ebayItemID string, publishedAt time.Time, endsAt *time.Time) error
	MarkListingFailed(ctx context.Context, id string, details []domain.StatusDetail) error
	MarkListingUnpublished(ctx context.Context, id string, at time.Time) error
	UpdateListingStock(ctx context.Context, l *domain.Listing) error

	CreateItemUpdate(ctx context.Context, u *domain.ItemUpdate) error
	GetItemUpdate(ctx context.Context, id string) (*domain.ItemUpdate, error)
	SaveItemUpdate(ctx context.Context, u *domain.ItemUpdate) error
	InsertAPIAttempt(ctx context.Context, a *domain.APIAttempt) error
}

// Gateway is the subset of the eBay Trading API used for listings.
type Gateway interface {
	AddFixedPriceItem(ctx context.Context, sess ebay.Session, item wire.Item) (*wire.AddItemResult, error)
	ReviseFixedPriceItem(ctx context.Context, sess ebay.Session, item wire.Item) (*wire.AddItemResult, error)
	EndFixedPriceItem(ctx context.Context, sess ebay.Session, itemID, reason string) (*wire.EndItemResult, error)
	ReviseInventoryStatus(
		ctx context.Context,
		sess ebay.Session,
		statuses []wire.InventoryStatus,
	) (*wire.ReviseInventoryStatusResult, error)

	// Pickup stock of click & collect listings.
	inventory.StockGateway
}

// Service runs the listing lifecycle.
type Service struct {
	store    Store
	gateway  Gateway
	queue    tasks.Queue
	notifier notify.Notifier
	log      *slog.Logger
	now      func() time.Time

	skuPrefix           string
	minimumPrice        decimal.Decimal
	defaults            wire.ItemDefaults
	returnPolicyMarkets []string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithNotifier sets the notifier alerted about failed listings.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(f func() time.Time) Option {
	return func(s *Service) {
		s.now = f
	}
}

// WithSKUPrefix sets the environment prefix of minted SKUs.
func WithSKUPrefix(p string) Option {
	return func(s *Service) {
		s.skuPrefix = p
	}
}

// WithMinimumPrice sets the lowest accepted listing price.
func WithMinimumPrice(p decimal.Decimal) Option {
	return func(s *Service) {
		s.minimumPrice = p
	}
}

// WithItemDefaults sets the static values merged into every payload.
// Country, location and postal code are taken from the account.
func WithItemDefaults(d wire.ItemDefaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithReturnPolicyMarkets lists the countries that require a return policy.
func WithReturnPolicyMarkets(countries ...string) Option {
	return func(s *Service) {
		s.returnPolicyMarkets = countries
	}
}

// NewService creates a Service. The queue receives publish and update tasks.
func NewService(st Store, g Gateway, q tasks.Queue, opts ...Option) *Service {
	s := &Service{
		store:        st,
		gateway:      g,
		queue:        q,
		log:          slog.Default(),
		now:          time.Now,
		minimumPrice: decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.NewNoOpNotifier(s.log)
	}
	return s
}

func (s *Service) requiresReturnPolicy(country string) bool {
	return slices.Contains(s.returnPolicyMarkets, country)
}

// itemDefaults merges the account's location into the static defaults.
func (s *Service) itemDefaults(acc *domain.Account) wire.ItemDefaults {
	d := s.defaults
	d.Country = acc.Country
	if acc.Location != nil {
		d.Location = acc.Location.City
		d.PostalCode = acc.Location.PostalCode
	}
	return d
}

func session(acc *domain.Account) ebay.Session {
	var token string
	if acc.Token != nil {
		token = acc.Token.Value
	}
	return ebay.Session{Token: token, SiteID: acc.SiteID}
}

func (s *Service) alert(ctx context.Context, a *notify.AlertPayload) {
	if err := s.notifier.SendAlert(ctx, a); err != nil {
		s.log.Warn("sending alert", "kind", a.Kind, "listing_id", a.ListingID, "error", err)
	}
}
