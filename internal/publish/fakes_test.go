package publish_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/store"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// memStore is an in-memory publish.Store.
type memStore struct {
	mu         sync.Mutex
	seq        int
	accounts   map[string]*domain.Account
	categories map[string]*domain.Category
	specifics  map[string][]domain.Specific
	listings   map[string]*domain.Listing
	updates    map[string]*domain.ItemUpdate
	attempts   []domain.APIAttempt
	stock      int
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   map[string]*domain.Account{},
		categories: map[string]*domain.Category{},
		specifics:  map[string][]domain.Specific{},
		listings:   map[string]*domain.Listing{},
		updates:    map[string]*domain.ItemUpdate{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

func (m *memStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(a), nil
}

func (m *memStore) GetCategory(_ context.Context, country, id string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[country+"/"+id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(c), nil
}

func (m *memStore) ListSpecifics(_ context.Context, country, categoryID string) ([]domain.Specific, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.specifics[country+"/"+categoryID]), nil
}

func (m *memStore) CreateListing(_ context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.listings {
		if other.AccountID == l.AccountID && other.CoreProductID == l.CoreProductID &&
			other.Status != domain.StatusUnpublished {
			return store.ErrConflict
		}
	}
	if l.Status == "" {
		l.Status = domain.StatusDraft
	}
	l.ID = m.nextID("lst")
	l.CreatedAt = fixedNow
	m.listings[l.ID] = clone(l)
	return nil
}

func (m *memStore) UpdateListingSnapshot(_ context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.listings[l.ID]
	if !ok {
		return store.ErrNotFound
	}
	next := clone(l)
	next.Status, next.StatusDetails, next.EbayItemID = cur.Status, cur.StatusDetails, cur.EbayItemID
	m.listings[l.ID] = next
	return nil
}

func (m *memStore) GetListing(_ context.Context, id string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(l), nil
}

func (m *memStore) GetActiveListing(_ context.Context, accountID string, productID int64) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listings {
		if l.AccountID == accountID && l.CoreProductID == productID && l.Status != domain.StatusUnpublished {
			return clone(l), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetListingByEbayItemID(_ context.Context, itemID string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listings {
		if l.EbayItemID != nil && *l.EbayItemID == itemID {
			return clone(l), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) TransitionListing(
	_ context.Context,
	id string,
	from []domain.PublishingStatus,
	to domain.PublishingStatus,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(from, l.Status) {
		return store.ErrConflict
	}
	l.Status = to
	return nil
}

func (m *memStore) MarkListingPublished(
	_ context.Context,
	id, itemID string,
	at time.Time,
	endsAt *time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	if l.Status != domain.StatusInProgress {
		return store.ErrConflict
	}
	l.Status = domain.StatusPublished
	l.EbayItemID = &itemID
	l.PublishedAt = &at
	l.EndsAt = endsAt
	l.StatusDetails = nil
	return nil
}

func (m *memStore) MarkListingFailed(_ context.Context, id string, details []domain.StatusDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	if l.Status != domain.StatusInProgress {
		return store.ErrConflict
	}
	l.Status = domain.StatusFailed
	l.StatusDetails = slices.Clone(details)
	return nil
}

func (m *memStore) MarkListingUnpublished(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	if l.Status == domain.StatusUnpublished {
		return store.ErrConflict
	}
	l.Status = domain.StatusUnpublished
	l.UnpublishedAt = &at
	return nil
}

func (m *memStore) UpdateListingStock(_ context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.listings[l.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.GrossPrice, cur.Quantity, cur.Variations = l.GrossPrice, l.Quantity, slices.Clone(l.Variations)
	m.stock++
	return nil
}

func (m *memStore) CreateItemUpdate(_ context.Context, u *domain.ItemUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.nextID("upd")
	c := clone(u)
	c.VariationUpdates = slices.Clone(u.VariationUpdates)
	m.updates[u.ID] = c
	return nil
}

func (m *memStore) GetItemUpdate(_ context.Context, id string) (*domain.ItemUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.updates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := clone(u)
	c.VariationUpdates = slices.Clone(u.VariationUpdates)
	c.StatusDetails = slices.Clone(u.StatusDetails)
	return c, nil
}

func (m *memStore) SaveItemUpdate(_ context.Context, u *domain.ItemUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.updates[u.ID]; !ok {
		return store.ErrNotFound
	}
	c := clone(u)
	c.VariationUpdates = slices.Clone(u.VariationUpdates)
	c.StatusDetails = slices.Clone(u.StatusDetails)
	m.updates[u.ID] = c
	return nil
}

func (m *memStore) InsertAPIAttempt(_ context.Context, a *domain.APIAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID("att")
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *memStore) listing(id string) *domain.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.listings[id])
}

// fakeGateway scripts eBay responses.
type fakeGateway struct {
	mu       sync.Mutex
	addErrs  []error
	addCalls int
	revises  int
	endErr   error
	ends     int
	invErrs  []error
	invCalls [][]wire.InventoryStatus
	stock    map[string]int
}

func (g *fakeGateway) AddFixedPriceItem(context.Context, ebay.Session, wire.Item) (*wire.AddItemResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addCalls++
	if len(g.addErrs) > 0 {
		err := g.addErrs[0]
		g.addErrs = g.addErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &wire.AddItemResult{
		ItemID:  "110000000001",
		EndTime: wire.NewTime(fixedNow.Add(30 * 24 * time.Hour)),
	}, nil
}

func (g *fakeGateway) ReviseFixedPriceItem(_ context.Context, _ ebay.Session, item wire.Item) (*wire.AddItemResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revises++
	return &wire.AddItemResult{ItemID: item.ItemID}, nil
}

func (g *fakeGateway) EndFixedPriceItem(context.Context, ebay.Session, string, string) (*wire.EndItemResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ends++
	if g.endErr != nil {
		return nil, g.endErr
	}
	return &wire.EndItemResult{EndTime: wire.NewTime(fixedNow)}, nil
}

func (g *fakeGateway) ReviseInventoryStatus(
	_ context.Context,
	_ ebay.Session,
	statuses []wire.InventoryStatus,
) (*wire.ReviseInventoryStatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invCalls = append(g.invCalls, statuses)
	if len(g.invErrs) > 0 {
		err := g.invErrs[0]
		g.invErrs = g.invErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &wire.ReviseInventoryStatusResult{InventoryStatus: statuses}, nil
}

func (g *fakeGateway) AddInventory(_ context.Context, _ ebay.Session, sku, _ string, qty int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stock == nil {
		g.stock = map[string]int{}
	}
	g.stock[sku] = qty
	return nil
}

func (g *fakeGateway) DeleteInventory(_ context.Context, _ ebay.Session, sku, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stock == nil {
		g.stock = map[string]int{}
	}
	g.stock[sku] = 0
	return nil
}

// fakeQueue records tasks instead of running them.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []tasks.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, t tasks.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func testAccount() *domain.Account {
	return &domain.Account{
		ID:            "acc-1",
		Username:      "shop@example.com",
		CoreAccountID: "core-1",
		Country:       "DE",
		SiteID:        77,
		Currency:      "EUR",
		Token:         &domain.Token{Value: "tok", ExpiresAt: fixedNow.Add(24 * time.Hour)},
		Location:      &domain.Location{LocationID: "store-1", City: "Berlin", PostalCode: "10115"},
		ReturnPolicy:  &domain.ReturnPolicy{ReturnsAccepted: true, ReturnsWithin: "Days_14"},
		Shipping: []domain.ShippingConfig{
			{ServiceCode: "DE_DHLPaket", Cost: decimal.RequireFromString("4.99")},
		},
		CreatedAt: fixedNow.Add(-30 * 24 * time.Hour),
	}
}

func testProduct() *domain.Product {
	return &domain.Product{
		ID:          1234,
		Name:        "Leather jacket",
		Description: "Brown, genuine leather",
		Images:      []string{"https://media.internal/1234.jpg"},
		GrossPrice:  decimal.RequireFromString("119.9900000000"),
		Quantity:    3,
		TaxRate:     decimal.NewFromInt(19),
		Attributes:  []domain.NameValue{{Name: "Brand", Value: "Acme"}},
	}
}

func seededStore() *memStore {
	m := newMemStore()
	acc := testAccount()
	m.accounts[acc.ID] = acc
	m.categories["DE/11450"] = &domain.Category{ID: "11450", Country: "DE", Name: "Clothing", IsLeaf: true}
	m.categories["DE/1"] = &domain.Category{ID: "1", Country: "DE", Name: "Root"}
	m.specifics["DE/11450"] = []domain.Specific{{CategoryID: "11450", Country: "DE", Name: "Brand", Required: true}}
	return m
}
