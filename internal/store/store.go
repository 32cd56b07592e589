// Package store defines the datastore abstraction for the eBay connector.
// All business logic depends on narrow subsets of the Store interface, never
// on concrete implementations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional state change finds the row
	// in an unexpected state.
	ErrConflict = errors.New("state conflict")
)

// ListingQuery defines optional filters for listing queries.
type ListingQuery struct {
	AccountID     *string
	Status        *domain.PublishingStatus
	CoreProductID *int64
	Limit         int // default 50
	Offset        int
	OrderBy       string // "created_at", "updated_at", "published_at"
}

// NotificationQuery defines optional filters for the notification audit log.
type NotificationQuery struct {
	Status    *domain.NotificationStatus
	EventType *string
	Limit     int
	Offset    int
}

// Store defines all data access operations for the connector.
type Store interface {
	// Accounts
	UpsertAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetAccountByEbayUserID(ctx context.Context, ebayUserID string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	UpdateWatermark(ctx context.Context, accountID string, d domain.SyncDomain, t time.Time) error

	// Listings
	CreateListing(ctx context.Context, l *domain.Listing) error
	UpdateListingSnapshot(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	GetActiveListing(ctx context.Context, accountID string, coreProductID int64) (*domain.Listing, error)
	GetListingByEbayItemID(ctx context.Context, ebayItemID string) (*domain.Listing, error)
	GetListingBySKU(ctx context.Context, sku string) (*domain.Listing, error)
	ListListings(ctx context.Context, q *ListingQuery) ([]domain.Listing, int, error)
	ListPublishedListings(ctx context.Context, accountID string, coreProductIDs []int64) ([]domain.Listing, error)
	TransitionListing(ctx context.Context, id string, from []domain.PublishingStatus, to domain.PublishingStatus) error
	MarkListingPublished(ctx context.Context, id, ebayItemID string, publishedAt time.Time, endsAt *time.Time) error
	MarkListingFailed(ctx context.Context, id string, details []domain.StatusDetail) error
	MarkListingUnpublished(ctx context.Context, id string, at time.Time) error
	UpdateListingStock(ctx context.Context, l *domain.Listing) error

	// Item updates and the API audit trail
	CreateItemUpdate(ctx context.Context, u *domain.ItemUpdate) error
	GetItemUpdate(ctx context.Context, id string) (*domain.ItemUpdate, error)
	SaveItemUpdate(ctx context.Context, u *domain.ItemUpdate) error
	ListItemUpdates(ctx context.Context, listingID string, limit int) ([]domain.ItemUpdate, error)
	InsertAPIAttempt(ctx context.Context, a *domain.APIAttempt) error
	ListAPIAttempts(ctx context.Context, listingID string, limit int) ([]domain.APIAttempt, error)

	// Orders and returns
	UpsertOrder(ctx context.Context, o *domain.Order) error
	GetOrderByEbayID(ctx context.Context, accountID, ebayOrderID string) (*domain.Order, error)
	GetOrderByCoreID(ctx context.Context, coreOrderID string) (*domain.Order, error)
	SetCoreOrderID(ctx context.Context, id, coreOrderID string) error
	UpdateOrderCoreStatus(ctx context.Context, id string, st domain.OrderStatus) error
	UpsertReturn(ctx context.Context, r *domain.Return) error
	GetReturnByCoreID(ctx context.Context, coreReturnID string) (*domain.Return, error)
	MarkReturnSynced(ctx context.Context, id string) error

	// Catalog
	ReplaceCategories(ctx context.Context, country string, cats []domain.Category) error
	GetCategory(ctx context.Context, country, id string) (*domain.Category, error)
	ListChildCategories(ctx context.Context, country, parentID string) ([]domain.Category, error)
	ListLeafCategoryIDs(ctx context.Context, country string) ([]string, error)
	ReplaceSpecifics(ctx context.Context, country string, categoryIDs []string, specs []domain.Specific) error
	ListSpecifics(ctx context.Context, country, categoryID string) ([]domain.Specific, error)
	ReplaceShippingServices(ctx context.Context, country string, svcs []domain.ShippingService) error
	ListShippingServices(ctx context.Context, country string) ([]domain.ShippingService, error)

	// Notifications
	InsertNotification(ctx context.Context, n *domain.Notification) error
	UpdateNotificationStatus(ctx context.Context, id string, status domain.NotificationStatus, details json.RawMessage) error
	ListNotifications(ctx context.Context, q *NotificationQuery) ([]domain.Notification, int, error)

	// Scheduler
	InsertJobRun(ctx context.Context, jobName string) (id string, err error)
	CompleteJobRun(ctx context.Context, id string, status string, errText string, rowsAffected int) error
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	RecoverStaleJobRuns(ctx context.Context, olderThan time.Duration) (int, error)
	AcquireSchedulerLock(ctx context.Context, jobName string, holder string, ttl time.Duration) (bool, error)
	ReleaseSchedulerLock(ctx context.Context, jobName string, holder string) error

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
