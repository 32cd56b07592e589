package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/syncer"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

type harness struct {
	store   *fakeStore
	trading *fakeTrading
	core    *fakeCore
	updater *fakeUpdater
	queue   *fakeQueue
	svc     *syncer.Syncer
	acc     *domain.Account
}

func newHarness(opts ...syncer.Option) *harness {
	h := &harness{
		store:   newFakeStore(),
		trading: &fakeTrading{},
		core:    &fakeCore{},
		updater: &fakeUpdater{},
		queue:   &fakeQueue{},
	}
	mark := lastMark
	h.acc = &domain.Account{
		ID:               "acc-1",
		CoreAccountID:    "core-acc-1",
		Country:          "DE",
		SiteID:           77,
		Currency:         "EUR",
		Token:            &domain.Token{Value: "tok", ExpiresAt: fixedNow.Add(24 * time.Hour)},
		LastProductsSync: &mark,
		LastOrdersSync:   &mark,
		LastReturnsSync:  &mark,
		CreatedAt:        fixedNow.Add(-30 * 24 * time.Hour),
	}
	h.store.accounts[h.acc.ID] = h.acc

	base := []syncer.Option{
		syncer.WithServiceLogger(quietLogger()),
		syncer.WithClock(func() time.Time { return fixedNow }),
		syncer.WithSKUPrefix("invtest_"),
	}
	h.svc = syncer.New(h.store, h.trading, h.core, h.updater, h.queue, append(base, opts...)...)
	return h
}

func ebayOrder(id, sku string) wire.Order {
	return wire.Order{
		OrderID:     id,
		OrderStatus: "Active",
		Total:       &wire.Amount{Value: decimal.RequireFromString("19.99"), CurrencyID: "EUR"},
		Transactions: []wire.Transaction{{
			TransactionID:     "tx-" + id,
			Item:              wire.TransactionItem{ItemID: "110" + id, SKU: sku, Title: "Widget"},
			QuantityPurchased: 1,
		}},
	}
}

func ptr[T any](v T) *T { return &v }

func TestSyncProducts(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.store.listings[1234] = &domain.Listing{
		ID:         "lst-1",
		AccountID:  h.acc.ID,
		Status:     domain.StatusPublished,
		GrossPrice: decimal.RequireFromString("10.00"),
		Quantity:   5,
	}
	h.store.listings[2000] = &domain.Listing{
		ID:        "lst-2",
		AccountID: h.acc.ID,
		Status:    domain.StatusPublished,
		Variations: []domain.Variation{
			{ID: "var-1", CoreProductID: 2001, SKU: "invtest_2001", Price: decimal.RequireFromString("5"), Quantity: 1},
			{ID: "var-2", CoreProductID: 2002, SKU: "invtest_2002", Price: decimal.RequireFromString("5"), Quantity: 1},
		},
	}
	h.store.listings[3000] = &domain.Listing{ID: "lst-3", AccountID: h.acc.ID, Status: domain.StatusUnpublished}
	h.core.products = [][]core.ProductChange{
		{
			{ID: 1234, GrossPrice: decimal.RequireFromString("12.50"), Quantity: -2},
			{ID: 9999, GrossPrice: decimal.RequireFromString("1"), Quantity: 1},
		},
		{
			{ID: 2000, Variants: []core.VariantChange{
				{ID: 2001, GrossPrice: decimal.RequireFromString("5"), Quantity: 1},
				{ID: 2002, GrossPrice: decimal.RequireFromString("6"), Quantity: 3},
			}},
			{ID: 3000, GrossPrice: decimal.RequireFromString("1"), Quantity: 1},
		},
	}

	st, err := h.svc.SyncProducts(context.Background(), h.acc)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Pages)
	assert.Equal(t, 2, st.Applied)
	assert.Equal(t, 2, st.Skipped, "unknown product and unpublished listing")

	require.Len(t, h.updater.updates, 2)
	item := h.updater.updates[0]
	assert.Equal(t, "lst-1", item.listingID)
	require.NotNil(t, item.price)
	assert.True(t, decimal.RequireFromString("12.50").Equal(*item.price))
	require.NotNil(t, item.quantity)
	assert.Equal(t, 0, *item.quantity, "negative stock is clamped")

	vars := h.updater.updates[1]
	assert.Equal(t, "lst-2", vars.listingID)
	require.Len(t, vars.variations, 1, "unchanged variant is left out")
	assert.Equal(t, "var-2", vars.variations[0].VariationID)
	assert.Equal(t, domain.UpdatePending, vars.variations[0].Status)

	mark, ok := h.store.watermark(h.acc.ID, domain.SyncProducts)
	require.True(t, ok)
	assert.Equal(t, fixedNow, mark)
	assert.Equal(t, lastMark, h.core.since[0])
}

func TestSyncProducts_FailureKeepsWatermark(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.core.err = errors.New("core unavailable")

	_, err := h.svc.SyncProducts(context.Background(), h.acc)
	require.Error(t, err)
	_, ok := h.store.watermark(h.acc.ID, domain.SyncProducts)
	assert.False(t, ok)
}

func TestSyncOrders_PullsOwnOrders(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.trading.orderPages = [][]wire.Order{
		{ebayOrder("1", "invtest_1234"), ebayOrder("2", "invstaging_1234")},
		{ebayOrder("3", "invtest_5678")},
	}

	st, err := h.svc.SyncOrders(context.Background(), h.acc)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Applied)
	assert.Equal(t, 1, st.Skipped)

	_, err = h.store.GetOrderByEbayID(context.Background(), h.acc.ID, "2")
	require.Error(t, err, "foreign order is not mirrored")

	o, err := h.store.GetOrderByEbayID(context.Background(), h.acc.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", o.Lines[0].TransactionID)

	assert.Equal(t, []string{syncer.TaskCreateOrder, syncer.TaskCreateOrder}, h.queue.names())
	for _, q := range h.trading.orderQueries {
		assert.Equal(t, lastMark, q.From)
		assert.Equal(t, fixedNow, q.To)
	}

	mark, ok := h.store.watermark(h.acc.ID, domain.SyncOrders)
	require.True(t, ok)
	assert.Equal(t, fixedNow, mark)
}

func TestSyncOrders_KnownOrderKeepsCoreLink(t *testing.T) {
	t.Parallel()

	h := newHarness()
	require.NoError(t, h.store.UpsertOrder(context.Background(), &domain.Order{
		AccountID:   h.acc.ID,
		EbayOrderID: "1",
		CoreOrderID: ptr("core-1"),
		CoreStatus:  domain.OrderStatus{IsPaid: true},
	}))
	paid := ebayOrder("1", "invtest_1234")
	paid.PaidTime = wire.NewTime(fixedNow.Add(-time.Minute))
	h.trading.orderPages = [][]wire.Order{{paid}}

	_, err := h.svc.SyncOrders(context.Background(), h.acc)
	require.NoError(t, err)

	o, err := h.store.GetOrderByEbayID(context.Background(), h.acc.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, o.CoreOrderID)
	assert.Equal(t, "core-1", *o.CoreOrderID)
	assert.True(t, o.CoreStatus.IsPaid)
	assert.True(t, o.EbayStatus.IsPaid)
	assert.Empty(t, h.queue.names())
}

func TestSyncOrders_PushesCoreStatus(t *testing.T) {
	t.Parallel()

	h := newHarness()
	require.NoError(t, h.store.UpsertOrder(context.Background(), &domain.Order{
		AccountID:   h.acc.ID,
		EbayOrderID: "1",
		CoreOrderID: ptr("core-1"),
		Total:       decimal.RequireFromString("19.99"),
		Currency:    "EUR",
	}))
	require.NoError(t, h.store.UpsertOrder(context.Background(), &domain.Order{
		AccountID:   h.acc.ID,
		EbayOrderID: "2",
		CoreOrderID: ptr("core-2"),
		EbayStatus:  domain.OrderStatus{IsCanceled: true},
	}))
	h.core.orders = [][]core.OrderChange{{
		{ID: "core-1", Status: domain.OrderStatus{IsPaid: true, IsShipped: true}, TrackingNumber: "JJD01", Carrier: "DHL"},
		{ID: "core-2", Status: domain.OrderStatus{IsPaid: true, IsShipped: true}},
		{ID: "core-unknown", Status: domain.OrderStatus{IsPaid: true}},
	}}

	st, err := h.svc.SyncOrders(context.Background(), h.acc)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Applied)
	assert.Equal(t, 1, st.Skipped)

	require.Len(t, h.trading.checkouts, 1, "canceled order is not pushed")
	assert.Equal(t, "1", h.trading.checkouts[0].OrderID)
	assert.Equal(t, "Complete", h.trading.checkouts[0].CheckoutStatus)

	require.Len(t, h.trading.completeSales, 1)
	sale := h.trading.completeSales[0]
	assert.Equal(t, "1", sale.OrderID)
	require.NotNil(t, sale.Shipped)
	assert.True(t, *sale.Shipped)
	require.NotNil(t, sale.Shipment)
	assert.Equal(t, "JJD01", sale.Shipment.ShipmentTrackingDetails.ShipmentTrackingNumber)
	assert.Equal(t, "DHL", sale.Shipment.ShipmentTrackingDetails.ShippingCarrierUsed)

	o, err := h.store.GetOrderByCoreID(context.Background(), "core-1")
	require.NoError(t, err)
	assert.True(t, o.EbayStatus.IsPaid)
	assert.True(t, o.EbayStatus.IsShipped)
	assert.True(t, o.CoreStatus.IsShipped)

	canceled, err := h.store.GetOrderByCoreID(context.Background(), "core-2")
	require.NoError(t, err)
	assert.True(t, canceled.CoreStatus.IsPaid, "core status is recorded even when nothing is pushed")
}

func TestSyncOrders_StatusPushErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantErr   bool
		committed bool
	}{
		{
			name:      "rejection is logged",
			err:       &ebay.ApplicationError{Call: "CompleteSale", Details: []domain.StatusDetail{{Code: "21916300", Severity: "Error"}}},
			committed: true,
		},
		{
			name:    "transport failure aborts",
			err:     &ebay.TransportError{Call: "CompleteSale", Status: 503},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness()
			require.NoError(t, h.store.UpsertOrder(context.Background(), &domain.Order{
				AccountID:   h.acc.ID,
				EbayOrderID: "1",
				CoreOrderID: ptr("core-1"),
			}))
			h.core.orders = [][]core.OrderChange{{{ID: "core-1", Status: domain.OrderStatus{IsShipped: true}}}}
			h.trading.pushErr = tt.err

			_, err := h.svc.SyncOrders(context.Background(), h.acc)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			_, ok := h.store.watermark(h.acc.ID, domain.SyncOrders)
			assert.Equal(t, tt.committed, ok)

			o, err := h.store.GetOrderByCoreID(context.Background(), "core-1")
			require.NoError(t, err)
			assert.False(t, o.EbayStatus.IsShipped)
		})
	}
}

func TestSyncOrders_PageCap(t *testing.T) {
	t.Parallel()

	h := newHarness(syncer.WithOrderPages(1, 2))
	h.trading.orderPages = [][]wire.Order{
		{ebayOrder("1", "invtest_1")},
		{ebayOrder("2", "invtest_2")},
		{ebayOrder("3", "invtest_3")},
	}

	_, err := h.svc.SyncOrders(context.Background(), h.acc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 2 pages")
	_, ok := h.store.watermark(h.acc.ID, domain.SyncOrders)
	assert.False(t, ok)
}

func TestCreateOrderTask(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.trading.orderPages = [][]wire.Order{{ebayOrder("1", "invtest_1234")}}
	_, err := h.svc.SyncOrders(context.Background(), h.acc)
	require.NoError(t, err)
	require.Len(t, h.queue.tasks, 1)

	exec := tasks.NewExecutor(tasks.WithExecutorLogger(quietLogger()))
	h.svc.RegisterTasks(exec, tasks.NoRetry)

	// A redelivered task must not create a second core order.
	require.NoError(t, exec.Execute(context.Background(), h.queue.tasks[0]))
	require.NoError(t, exec.Execute(context.Background(), h.queue.tasks[0]))
	assert.Equal(t, []string{"1"}, h.core.created)

	o, err := h.store.GetOrderByEbayID(context.Background(), h.acc.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, o.CoreOrderID)
	assert.Equal(t, "core-1", *o.CoreOrderID)
}

func TestSyncOrdersTask(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.trading.orderPages = [][]wire.Order{{ebayOrder("1", "invtest_1"), ebayOrder("2", "invtest_2")}}

	require.NoError(t, h.svc.EnqueueOrderSync(context.Background(), h.acc.ID, "2"))
	exec := tasks.NewExecutor(tasks.WithExecutorLogger(quietLogger()))
	h.svc.RegisterTasks(exec, tasks.NoRetry)
	require.NoError(t, exec.Execute(context.Background(), h.queue.tasks[0]))

	require.Len(t, h.trading.orderQueries, 1)
	assert.Equal(t, []string{"2"}, h.trading.orderQueries[0].OrderIDs)
	_, err := h.store.GetOrderByEbayID(context.Background(), h.acc.ID, "2")
	require.NoError(t, err)
	_, err = h.store.GetOrderByEbayID(context.Background(), h.acc.ID, "1")
	require.Error(t, err)
}

func TestSyncReturns_RefundsOnce(t *testing.T) {
	t.Parallel()

	h := newHarness()
	require.NoError(t, h.store.UpsertOrder(context.Background(), &domain.Order{
		AccountID:   h.acc.ID,
		EbayOrderID: "1",
		CoreOrderID: ptr("core-1"),
		Currency:    "EUR",
		Lines:       []domain.OrderLine{{EbayItemID: "1101", TransactionID: "tx-1"}},
	}))
	h.core.returns = [][]core.ReturnChange{{
		{ID: "ret-1", OrderID: "core-1", RefundAmount: decimal.RequireFromString("4.50"), RefundType: domain.RefundPartial},
		{ID: "ret-2", OrderID: "core-other"},
	}}

	st, err := h.svc.SyncReturns(context.Background(), h.acc)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Applied)
	assert.Equal(t, 1, st.Skipped)

	require.Len(t, h.trading.refunds, 1)
	ref := h.trading.refunds[0]
	assert.Equal(t, "1101", ref.ItemID)
	assert.Equal(t, "tx-1", ref.TransactionID)
	assert.Equal(t, "CustomOrPartial", ref.RefundType)
	require.NotNil(t, ref.RefundAmount)
	assert.True(t, decimal.RequireFromString("4.50").Equal(ref.RefundAmount.Value))

	// The same return arrives again on the next run.
	_, err = h.svc.SyncReturns(context.Background(), h.acc)
	require.NoError(t, err)
	assert.Len(t, h.trading.refunds, 1)
	assert.True(t, h.store.returns["ret-1"].SyncedWithEbay)
}

func TestSyncReturns_RejectedRefundIsRetried(t *testing.T) {
	t.Parallel()

	h := newHarness()
	require.NoError(t, h.store.UpsertOrder(context.Background(), &domain.Order{
		AccountID:   h.acc.ID,
		EbayOrderID: "1",
		CoreOrderID: ptr("core-1"),
	}))
	h.core.returns = [][]core.ReturnChange{{{ID: "ret-1", OrderID: "core-1", RefundType: domain.RefundFull}}}
	h.trading.pushErr = &ebay.ApplicationError{Call: "IssueRefund", Details: []domain.StatusDetail{{Code: "21919188", Severity: "Error"}}}

	_, err := h.svc.SyncReturns(context.Background(), h.acc)
	require.NoError(t, err)
	assert.False(t, h.store.returns["ret-1"].SyncedWithEbay)

	h.trading.pushErr = nil
	_, err = h.svc.SyncReturns(context.Background(), h.acc)
	require.NoError(t, err)
	assert.Len(t, h.trading.refunds, 2)
	assert.True(t, h.store.returns["ret-1"].SyncedWithEbay)
}

func categoryTree(leaves int) []wire.CategoryXML {
	out := []wire.CategoryXML{{CategoryID: "1", CategoryLevel: 1, CategoryName: "Root", CategoryParentID: []string{"1"}}}
	for i := range leaves {
		id := fmt.Sprint(1000 + i)
		out = append(out, wire.CategoryXML{
			CategoryID:       id,
			CategoryLevel:    2,
			CategoryName:     "Leaf " + id,
			CategoryParentID: []string{"1"},
			LeafCategory:     true,
		})
	}
	return out
}

func TestSyncCategories(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.trading.categories = map[int][]wire.CategoryXML{77: categoryTree(45), 3: categoryTree(45)}

	st, err := h.svc.SyncCategories(context.Background(), ebay.Session{Token: "tok"}, []string{"GB", "DE"})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Countries)
	assert.Equal(t, 92, st.Categories)
	assert.Equal(t, 6, st.Batches)
	assert.Equal(t, 90, st.Specifics)

	require.Len(t, h.trading.specificsIDs, 6)
	sizes := make([]int, 0, 6)
	for _, ids := range h.trading.specificsIDs {
		sizes = append(sizes, len(ids))
	}
	assert.Equal(t, []int{20, 20, 5, 20, 20, 5}, sizes)

	de := h.store.categories["DE"]
	require.Len(t, de, 46)
	assert.Equal(t, "1", de[1].ParentID)
	assert.False(t, de[1].Variations, "explicit feature wins")
	assert.True(t, de[2].Variations, "site default applies")
	assert.Len(t, h.store.specifics["GB"], 45)
}

func TestSyncCategories_UnknownCountry(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := h.svc.SyncCategories(context.Background(), ebay.Session{}, []string{"XX"})
	require.Error(t, err)
	assert.Empty(t, h.trading.specificsIDs)
}

func TestSyncShipping(t *testing.T) {
	t.Parallel()

	h := newHarness()
	st, err := h.svc.SyncShipping(context.Background(), ebay.Session{Token: "tok", SiteID: 0}, []string{"DE", "GB"})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Countries)
	assert.Equal(t, 4, st.Services)
	assert.Equal(t, []int{77, 3}, h.trading.detailSites)

	de := h.store.services["DE"]
	require.Len(t, de, 2)
	assert.Equal(t, "Standard_77", de[0].Code)
	assert.Equal(t, "DHL", de[0].Carrier)
	assert.Equal(t, fixedNow, de[0].UpdatedAt)
	assert.Equal(t, "Express_3", h.store.services["GB"][1].Code)
}
