//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ebc_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func seedAccount(t *testing.T, s *store.PostgresStore) *domain.Account {
	t.Helper()
	a := &domain.Account{
		Username:      "shop-owner",
		CoreAccountID: "core-1",
		Country:       "DE",
		SiteID:        77,
		Currency:      "EUR",
		Token:         &domain.Token{Value: "tkn", ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Microsecond)},
		Location: &domain.Location{
			LocationID: "store-1",
			Name:       "Main store",
			City:       "Berlin",
			Country:    "DE",
			Latitude:   decimal.RequireFromString("52.520008"),
			Longitude:  decimal.RequireFromString("13.404954"),
		},
	}
	require.NoError(t, s.UpsertAccount(context.Background(), a))
	return a
}

func testListing(accountID string) *domain.Listing {
	return &domain.Listing{
		AccountID:     accountID,
		CoreProductID: 1234,
		SKU:           "invtest_1234",
		Title:         "Leather jacket",
		GrossPrice:    decimal.RequireFromString("119.9900000001"),
		Currency:      "EUR",
		Quantity:      3,
		TaxRate:       decimal.RequireFromString("19.000"),
		CategoryID:    "57988",
		Specifics:     []domain.NameValue{{Name: "Brand", Value: "Acme"}},
		Shipping: []domain.ShippingConfig{
			{ServiceCode: "DE_DHLPaket", Cost: decimal.NewFromInt(5)},
		},
		Variations: []domain.Variation{
			{ID: "v1", CoreProductID: 1235, SKU: "invtest_1235", Price: decimal.NewFromInt(120), Quantity: 1},
		},
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_MigrateIsIdempotent(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestPostgresStore_Accounts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	a := seedAccount(t, s)

	got, err := s.GetAccountByUsername(ctx, "shop-owner")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	require.NotNil(t, got.Token)
	assert.Equal(t, "tkn", got.Token.Value)
	require.NotNil(t, got.Location)
	assert.Equal(t, "store-1", got.Location.LocationID)
	assert.True(t, got.Location.Latitude.Equal(decimal.RequireFromString("52.520008")))
	assert.Nil(t, got.LastOrdersSync)
	assert.Equal(t, got.CreatedAt, got.Watermark(domain.SyncOrders))

	mark := time.Now().Truncate(time.Microsecond)
	require.NoError(t, s.UpdateWatermark(ctx, a.ID, domain.SyncOrders, mark))

	got, err = s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastOrdersSync)
	assert.True(t, mark.Equal(*got.LastOrdersSync))

	// A second upsert must not reset the watermark.
	require.NoError(t, s.UpsertAccount(ctx, a))
	got, err = s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastOrdersSync)

	_, err = s.GetAccountByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_ListingLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	a := seedAccount(t, s)

	l := testListing(a.ID)
	require.NoError(t, s.CreateListing(ctx, l))
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, domain.StatusDraft, l.Status)

	t.Run("second live listing conflicts", func(t *testing.T) {
		err := s.CreateListing(ctx, testListing(a.ID))
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("snapshot round trip keeps precision", func(t *testing.T) {
		got, err := s.GetActiveListing(ctx, a.ID, 1234)
		require.NoError(t, err)
		assert.Equal(t, l.ID, got.ID)
		assert.True(t, got.GrossPrice.Equal(decimal.RequireFromString("119.9900000001")))
		require.Len(t, got.Variations, 1)
		assert.Equal(t, "invtest_1235", got.Variations[0].SKU)
	})

	t.Run("lookup by variation sku", func(t *testing.T) {
		got, err := s.GetListingBySKU(ctx, "invtest_1235")
		require.NoError(t, err)
		assert.Equal(t, l.ID, got.ID)
	})

	t.Run("publish requires in_progress", func(t *testing.T) {
		err := s.MarkListingPublished(ctx, l.ID, "110001", time.Now(), nil)
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	require.NoError(t, s.TransitionListing(ctx, l.ID,
		[]domain.PublishingStatus{domain.StatusDraft, domain.StatusFailed}, domain.StatusInProgress))

	t.Run("transition from wrong state conflicts", func(t *testing.T) {
		err := s.TransitionListing(ctx, l.ID,
			[]domain.PublishingStatus{domain.StatusDraft}, domain.StatusInProgress)
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	published := time.Now().Truncate(time.Microsecond)
	require.NoError(t, s.MarkListingPublished(ctx, l.ID, "110001", published, nil))

	got, err := s.GetListingByEbayItemID(ctx, "110001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, published.Equal(*got.PublishedAt))

	pub, err := s.ListPublishedListings(ctx, a.ID, []int64{1234, 9999})
	require.NoError(t, err)
	require.Len(t, pub, 1)

	require.NoError(t, s.MarkListingUnpublished(ctx, l.ID, time.Now()))
	assert.ErrorIs(t, s.MarkListingUnpublished(ctx, l.ID, time.Now()), store.ErrConflict)

	closed, err := s.GetListingByEbayItemID(ctx, "110001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnpublished, closed.Status)
	require.NotNil(t, closed.EbayItemID)
	assert.Equal(t, "110001", *closed.EbayItemID)

	t.Run("product can be listed again after unpublish", func(t *testing.T) {
		require.NoError(t, s.CreateListing(ctx, testListing(a.ID)))
	})

	t.Run("unknown listing", func(t *testing.T) {
		err := s.TransitionListing(ctx, "00000000-0000-0000-0000-000000000000",
			[]domain.PublishingStatus{domain.StatusDraft}, domain.StatusInProgress)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresStore_MarkListingFailed(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	a := seedAccount(t, s)

	l := testListing(a.ID)
	require.NoError(t, s.CreateListing(ctx, l))
	require.NoError(t, s.TransitionListing(ctx, l.ID,
		[]domain.PublishingStatus{domain.StatusDraft}, domain.StatusInProgress))

	details := []domain.StatusDetail{{
		Code: "21919", Classification: "RequestError", Severity: domain.SeverityError,
		ShortMessage: "Price too low", LongMessage: "The price is below the minimum.",
	}}
	require.NoError(t, s.MarkListingFailed(ctx, l.ID, details))

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, details, got.StatusDetails)
	assert.Nil(t, got.EbayItemID)
}

func TestPostgresStore_ItemUpdates(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	a := seedAccount(t, s)

	l := testListing(a.ID)
	require.NoError(t, s.CreateListing(ctx, l))

	price := decimal.RequireFromString("99.5")
	qty := 7
	u := &domain.ItemUpdate{ListingID: l.ID, Price: &price, Quantity: &qty}
	require.NoError(t, s.CreateItemUpdate(ctx, u))
	assert.Equal(t, domain.UpdateDraft, u.Status)

	u.Status = domain.UpdateSucceeded
	u.VariationUpdates = []domain.VariationUpdate{{VariationID: "v1", SKU: "invtest_1235", Status: domain.UpdateSucceeded}}
	require.NoError(t, s.SaveItemUpdate(ctx, u))

	got, err := s.GetItemUpdate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UpdateSucceeded, got.Status)
	require.NotNil(t, got.Price)
	assert.True(t, got.Price.Equal(price))
	require.Len(t, got.VariationUpdates, 1)

	require.NoError(t, s.InsertAPIAttempt(ctx, &domain.APIAttempt{
		ListingID: l.ID, UpdateID: &u.ID, Type: domain.AttemptUpdate, Success: true,
		Request: "<req/>", Response: "<resp/>",
	}))
	attempts, err := s.ListAPIAttempts(ctx, l.ID, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.AttemptUpdate, attempts[0].Type)

	updates, err := s.ListItemUpdates(ctx, l.ID, 10)
	require.NoError(t, err)
	assert.Len(t, updates, 1)
}

func TestPostgresStore_OrdersAndReturns(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	a := seedAccount(t, s)

	o := &domain.Order{
		AccountID:   a.ID,
		EbayOrderID: "12-34567-89012",
		BuyerUserID: "buyer1",
		Total:       decimal.RequireFromString("25.50"),
		Currency:    "EUR",
		EbayStatus:  domain.OrderStatus{IsPaid: true},
		Lines:       []domain.OrderLine{{EbayItemID: "110001", SKU: "invtest_1234", Quantity: 1}},
		CreatedTime: time.Now().Add(-time.Hour).Truncate(time.Microsecond),
	}
	require.NoError(t, s.UpsertOrder(ctx, o))
	assert.Nil(t, o.CoreOrderID)

	require.NoError(t, s.SetCoreOrderID(ctx, o.ID, "core-42"))
	assert.ErrorIs(t, s.SetCoreOrderID(ctx, o.ID, "core-43"), store.ErrConflict)
	require.NoError(t, s.UpdateOrderCoreStatus(ctx, o.ID, domain.OrderStatus{IsPaid: true, IsShipped: true}))

	// Re-upserting from eBay keeps the core-side fields.
	o.EbayStatus.IsShipped = true
	require.NoError(t, s.UpsertOrder(ctx, o))
	require.NotNil(t, o.CoreOrderID)
	assert.Equal(t, "core-42", *o.CoreOrderID)
	assert.True(t, o.CoreStatus.IsShipped)

	got, err := s.GetOrderByCoreID(ctx, "core-42")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.True(t, got.EbayStatus.IsShipped)

	r := &domain.Return{
		OrderID: o.ID, CoreReturnID: "ret-1",
		RefundAmount: decimal.RequireFromString("25.5"), RefundType: domain.RefundFull,
	}
	require.NoError(t, s.UpsertReturn(ctx, r))
	require.NoError(t, s.MarkReturnSynced(ctx, r.ID))

	r.Note = "changed"
	require.NoError(t, s.UpsertReturn(ctx, r))
	assert.True(t, r.SyncedWithEbay, "latch must survive upserts")

	gotRet, err := s.GetReturnByCoreID(ctx, "ret-1")
	require.NoError(t, err)
	assert.True(t, gotRet.SyncedWithEbay)
	assert.Equal(t, "changed", gotRet.Note)
}

func TestPostgresStore_Catalog(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	cats := []domain.Category{
		{ID: "1", Name: "Fashion", Level: 1},
		{ID: "10", ParentID: "1", Name: "Jackets", Level: 2, IsLeaf: true, Variations: true},
		{ID: "11", ParentID: "1", Name: "Shoes", Level: 2, IsLeaf: true},
	}
	require.NoError(t, s.ReplaceCategories(ctx, "DE", cats))

	leaves, err := s.ListLeafCategoryIDs(ctx, "DE")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11"}, leaves)

	c, err := s.GetCategory(ctx, "DE", "10")
	require.NoError(t, err)
	assert.True(t, c.IsLeaf)
	_, err = s.GetCategory(ctx, "GB", "10")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.ReplaceSpecifics(ctx, "DE", []string{"10"}, []domain.Specific{
		{CategoryID: "10", Name: "Brand", Required: true, MaxValues: 1},
		{CategoryID: "10", Name: "Color", SelectionOnly: true, MaxValues: 1, Values: []string{"Red", "Blue"}},
	}))
	specs, err := s.ListSpecifics(ctx, "DE", "10")
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Brand", specs[0].Name)
	assert.Equal(t, []string{"Red", "Blue"}, specs[1].Values)

	// Replacing the tree cascades specifics away.
	require.NoError(t, s.ReplaceCategories(ctx, "DE", cats[:1]))
	specs, err = s.ListSpecifics(ctx, "DE", "10")
	require.NoError(t, err)
	assert.Empty(t, specs)

	require.NoError(t, s.ReplaceShippingServices(ctx, "DE", []domain.ShippingService{
		{Code: "DE_DHLPaket", Description: "DHL Paket", Valid: true},
	}))
	svcs, err := s.ListShippingServices(ctx, "DE")
	require.NoError(t, err)
	require.Len(t, svcs, 1)
	assert.Equal(t, "DE_DHLPaket", svcs[0].Code)
}

func TestPostgresStore_Notifications(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	n := &domain.Notification{
		EventType: "ItemClosed",
		Timestamp: time.Now().Truncate(time.Microsecond),
		Signature: "sig",
		Payload:   "<soap/>",
	}
	require.NoError(t, s.InsertNotification(ctx, n))
	assert.Equal(t, domain.NotificationUnhandled, n.Status)

	details, err := json.Marshal(map[string]string{"error": "boom"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateNotificationStatus(ctx, n.ID, domain.NotificationFailed, details))

	failed := domain.NotificationFailed
	got, total, err := s.ListNotifications(ctx, &store.NotificationQuery{Status: &failed})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"error":"boom"}`, string(got[0].Details))
}

func TestPostgresStore_SchedulerLocks(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	ok, err := s.AcquireSchedulerLock(ctx, "orders", "replica-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireSchedulerLock(ctx, "orders", "replica-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseSchedulerLock(ctx, "orders", "replica-a"))
	ok, err = s.AcquireSchedulerLock(ctx, "orders", "replica-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	id, err := s.InsertJobRun(ctx, "orders")
	require.NoError(t, err)
	require.NoError(t, s.CompleteJobRun(ctx, id, "succeeded", "", 3))

	runs, err := s.ListLatestJobRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "succeeded", runs[0].Status)
}
