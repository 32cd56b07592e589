package publish_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/publish"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

func variantProduct(n int) *domain.Product {
	p := testProduct()
	for i := range n {
		p.Variants = append(p.Variants, domain.ProductVariant{
			ID:         int64(2000 + i),
			GrossPrice: decimal.NewFromInt(100),
			Quantity:   5,
			Attributes: []domain.NameValue{{Name: "Size", Value: fmt.Sprintf("S%d", i)}},
		})
	}
	return p
}

func publishProduct(t *testing.T, h *harness, p *domain.Product, cfg domain.ListingConfig) *domain.Listing {
	t.Helper()
	ctx := context.Background()

	l, err := h.svc.Prepare(ctx, testAccount(), p, cfg)
	require.NoError(t, err)
	res, err := h.svc.Submit(ctx, l.ID, testAccount())
	require.NoError(t, err)
	require.Equal(t, publish.OutcomeQueued, res.Outcome, res.Validation)
	pub, err := h.svc.Publish(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, publish.OutcomePublished, pub.Outcome)
	return pub.Listing
}

func allVariations(l *domain.Listing, price int64) []domain.VariationUpdate {
	out := make([]domain.VariationUpdate, 0, len(l.Variations))
	for _, v := range l.Variations {
		p := decimal.NewFromInt(price)
		out = append(out, domain.VariationUpdate{VariationID: v.ID, SKU: v.SKU, Price: &p, Status: domain.UpdatePending})
	}
	return out
}

func TestApplyItemUpdate_ChunksVariations(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	l := publishProduct(t, h, variantProduct(6), domain.ListingConfig{CategoryID: "11450"})

	u, err := h.svc.QueueItemUpdate(context.Background(), l, nil, nil, allVariations(l, 90))
	require.NoError(t, err)
	require.NoError(t, h.svc.ApplyItemUpdate(context.Background(), u.ID))

	require.Len(t, h.gateway.invCalls, 2)
	assert.Len(t, h.gateway.invCalls[0], 4)
	assert.Len(t, h.gateway.invCalls[1], 2)
	for _, st := range h.gateway.invCalls[0] {
		assert.Equal(t, *l.EbayItemID, st.ItemID)
		assert.NotEmpty(t, st.SKU)
	}

	got := h.store.updates[u.ID]
	assert.Equal(t, domain.UpdateSucceeded, got.Status)
	for _, vu := range got.VariationUpdates {
		assert.Equal(t, domain.UpdateSucceeded, vu.Status)
	}
	for _, v := range h.store.listing(l.ID).Variations {
		assert.True(t, v.Price.Equal(decimal.NewFromInt(90)), v.SKU)
	}
}

func TestApplyItemUpdate_ResumesAfterTransportError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	l := publishProduct(t, h, variantProduct(6), domain.ListingConfig{CategoryID: "11450"})
	h.gateway.invErrs = []error{nil, &ebay.TransportError{Call: "ReviseInventoryStatus", Status: 503}}

	u, err := h.svc.QueueItemUpdate(context.Background(), l, nil, nil, allVariations(l, 90))
	require.NoError(t, err)

	err = h.svc.ApplyItemUpdate(context.Background(), u.ID)
	require.Error(t, err)
	assert.True(t, tasks.IsRetryable(err))

	mid := h.store.updates[u.ID]
	assert.Equal(t, domain.UpdateInProgress, mid.Status)
	done := 0
	for _, vu := range mid.VariationUpdates {
		if vu.Status == domain.UpdateSucceeded {
			done++
		} else {
			assert.Equal(t, domain.UpdatePending, vu.Status)
		}
	}
	assert.Equal(t, 4, done)

	require.NoError(t, h.svc.ApplyItemUpdate(context.Background(), u.ID))
	require.Len(t, h.gateway.invCalls, 3)
	assert.Len(t, h.gateway.invCalls[2], 2, "only unfinished variations are resent")
	assert.Equal(t, domain.UpdateSucceeded, h.store.updates[u.ID].Status)

	// the terminal update is not sent again
	require.NoError(t, h.svc.ApplyItemUpdate(context.Background(), u.ID))
	assert.Len(t, h.gateway.invCalls, 3)
}

func TestApplyItemUpdate_RejectedChunkFailsUpdate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	l := publishProduct(t, h, variantProduct(6), domain.ListingConfig{CategoryID: "11450"})
	h.gateway.invErrs = []error{&ebay.ApplicationError{Call: "ReviseInventoryStatus", Details: []domain.StatusDetail{
		{Code: "21919188", Severity: "Error", ShortMessage: "Invalid quantity."},
	}}}

	u, err := h.svc.QueueItemUpdate(context.Background(), l, nil, nil, allVariations(l, 90))
	require.NoError(t, err)
	require.NoError(t, h.svc.ApplyItemUpdate(context.Background(), u.ID))

	got := h.store.updates[u.ID]
	assert.Equal(t, domain.UpdateFailed, got.Status)
	require.Len(t, got.StatusDetails, 1)
	assert.Equal(t, "21919188", got.StatusDetails[0].Code)

	statuses := map[domain.UpdateStatus]int{}
	for _, vu := range got.VariationUpdates {
		statuses[vu.Status]++
	}
	assert.Equal(t, map[domain.UpdateStatus]int{domain.UpdateFailed: 4, domain.UpdateSucceeded: 2}, statuses)
}

func TestApplyItemUpdate_ItemLevel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	l := publishProduct(t, h, testProduct(), domain.ListingConfig{CategoryID: "11450", ClickAndCollect: true})

	price := decimal.RequireFromString("99.5")
	qty := 7
	u, err := h.svc.QueueItemUpdate(context.Background(), l, &price, &qty, nil)
	require.NoError(t, err)
	require.NoError(t, h.svc.ApplyItemUpdate(context.Background(), u.ID))

	require.Len(t, h.gateway.invCalls, 1)
	require.Len(t, h.gateway.invCalls[0], 1)
	st := h.gateway.invCalls[0][0]
	assert.Empty(t, st.SKU)
	require.NotNil(t, st.Quantity)
	assert.Equal(t, 7, *st.Quantity)

	got := h.store.listing(l.ID)
	assert.True(t, got.GrossPrice.Equal(price))
	assert.Equal(t, 7, got.Quantity)
	assert.Equal(t, 7, h.gateway.stock[l.SKU], "pickup stock follows the update")

	last := h.store.attempts[len(h.store.attempts)-1]
	assert.Equal(t, domain.AttemptUpdate, last.Type)
	require.NotNil(t, last.UpdateID)
	assert.Equal(t, u.ID, *last.UpdateID)
}

func TestApplyItemUpdate_ListingNoLongerPublished(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	l := publishProduct(t, h, testProduct(), domain.ListingConfig{CategoryID: "11450"})
	qty := 1
	u, err := h.svc.QueueItemUpdate(context.Background(), l, nil, &qty, nil)
	require.NoError(t, err)

	require.NoError(t, h.svc.MarkClosed(context.Background(), *l.EbayItemID))
	require.NoError(t, h.svc.ApplyItemUpdate(context.Background(), u.ID))

	assert.Empty(t, h.gateway.invCalls)
	assert.Equal(t, domain.UpdateFailed, h.store.updates[u.ID].Status)
}

func TestQueueItemUpdate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	draft := h.prepared(t)
	qty := 1
	_, err := h.svc.QueueItemUpdate(context.Background(), draft, nil, &qty, nil)
	require.ErrorIs(t, err, publish.ErrNotPublished)

	h2 := newHarness(t)
	l := h2.published(t)
	before := len(h2.queue.tasks)
	u, err := h2.svc.QueueItemUpdate(context.Background(), l, nil, &qty, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.UpdatePending, u.Status)
	require.Len(t, h2.queue.tasks, before+1)
	task := h2.queue.tasks[before]
	assert.Equal(t, publish.TaskApplyUpdate, task.Name)
	assert.Equal(t, l.ID, task.Key)
}

func TestRefresh_PublishedListingQueuesUpdate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	l := h.published(t)
	before := len(h.queue.tasks)

	p := testProduct()
	p.Name = "Leather jacket, brown"
	p.GrossPrice = decimal.RequireFromString("109.99")

	got, err := h.svc.Refresh(context.Background(), testAccount(), p, domain.ListingConfig{CategoryID: "11450"})
	require.NoError(t, err)

	assert.Equal(t, "Leather jacket, brown", got.Title)
	assert.True(t, got.GrossPrice.Equal(l.GrossPrice), "price changes go through an item update")
	assert.Equal(t, domain.StatusPublished, got.Status)

	require.Len(t, h.queue.tasks, before+1)
	require.Len(t, h.store.updates, 1)
	for _, u := range h.store.updates {
		require.NotNil(t, u.Price)
		assert.True(t, u.Price.Equal(p.GrossPrice))
		assert.Nil(t, u.Quantity)
	}
}

func TestRefresh_InProgressIsBusy(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.inProgress(t)

	_, err := h.svc.Refresh(context.Background(), testAccount(), testProduct(), domain.ListingConfig{CategoryID: "11450"})
	assert.ErrorIs(t, err, publish.ErrBusy)
}

func TestUpdateTask_FailureMarksUpdate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	l := h.published(t)
	transport := &ebay.TransportError{Call: "ReviseInventoryStatus", Status: 500}
	h.gateway.invErrs = []error{transport, transport}

	qty := 2
	u, err := h.svc.QueueItemUpdate(context.Background(), l, nil, &qty, nil)
	require.NoError(t, err)

	exec := tasks.NewExecutor(tasks.WithExecutorLogger(quietLogger()))
	h.svc.RegisterTasks(exec, tasks.RetryPolicy{MaxRetries: 1, Delay: 0})

	task := h.queue.tasks[len(h.queue.tasks)-1]
	require.Error(t, exec.Execute(context.Background(), task))

	got := h.store.updates[u.ID]
	assert.Equal(t, domain.UpdateFailed, got.Status)
	assert.NotEmpty(t, got.StatusDetails)
	assert.Len(t, h.gateway.invCalls, 2)
}
