package syncer_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/store"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

type watermarkKey struct {
	account string
	domain  domain.SyncDomain
}

type fakeStore struct {
	mu         sync.Mutex
	accounts   map[string]*domain.Account
	listings   map[int64]*domain.Listing
	orders     map[string]*domain.Order
	returns    map[string]*domain.Return
	watermarks map[watermarkKey]time.Time
	categories map[string][]domain.Category
	specifics  map[string][]domain.Specific
	services   map[string][]domain.ShippingService
	seq        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:   map[string]*domain.Account{},
		listings:   map[int64]*domain.Listing{},
		orders:     map[string]*domain.Order{},
		returns:    map[string]*domain.Return{},
		watermarks: map[watermarkKey]time.Time{},
		categories: map[string][]domain.Category{},
		specifics:  map[string][]domain.Specific{},
		services:   map[string][]domain.ShippingService{},
	}
}

func (s *fakeStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) UpdateWatermark(_ context.Context, accountID string, d domain.SyncDomain, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[watermarkKey{accountID, d}] = t
	return nil
}

func (s *fakeStore) watermark(accountID string, d domain.SyncDomain) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.watermarks[watermarkKey{accountID, d}]
	return t, ok
}

func (s *fakeStore) GetActiveListing(_ context.Context, accountID string, coreProductID int64) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[coreProductID]
	if !ok || l.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return l, nil
}

func (s *fakeStore) UpsertOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		s.seq++
		o.ID = fmt.Sprintf("order-%d", s.seq)
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeStore) GetOrderByEbayID(_ context.Context, accountID, ebayOrderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.AccountID == accountID && o.EbayOrderID == ebayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) GetOrderByCoreID(_ context.Context, coreOrderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.CoreOrderID != nil && *o.CoreOrderID == coreOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) SetCoreOrderID(_ context.Context, id, coreOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.CoreOrderID = &coreOrderID
	return nil
}

func (s *fakeStore) UpdateOrderCoreStatus(_ context.Context, id string, st domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.CoreStatus = st
	return nil
}

// UpsertReturn keys returns by core return id and keeps the synced latch.
func (s *fakeStore) UpsertReturn(_ context.Context, r *domain.Return) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.returns[r.CoreReturnID]; ok {
		r.ID = prev.ID
		r.SyncedWithEbay = prev.SyncedWithEbay
	} else {
		s.seq++
		r.ID = fmt.Sprintf("return-%d", s.seq)
	}
	cp := *r
	s.returns[r.CoreReturnID] = &cp
	return nil
}

func (s *fakeStore) MarkReturnSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.returns {
		if r.ID == id {
			r.SyncedWithEbay = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *fakeStore) ReplaceCategories(_ context.Context, country string, cats []domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[country] = cats
	return nil
}

func (s *fakeStore) ListLeafCategoryIDs(_ context.Context, country string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, c := range s.categories[country] {
		if c.IsLeaf {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *fakeStore) ReplaceSpecifics(_ context.Context, country string, _ []string, specs []domain.Specific) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specifics[country] = append(s.specifics[country], specs...)
	return nil
}

func (s *fakeStore) ReplaceShippingServices(_ context.Context, country string, svcs []domain.ShippingService) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[country] = svcs
	return nil
}

// fakeTrading serves canned eBay responses and records every call.
type fakeTrading struct {
	mu sync.Mutex

	orderPages   [][]wire.Order
	orderQueries []ebay.OrdersQuery
	ordersErr    error

	completeSales []wire.CompleteSaleRequest
	checkouts     []wire.ReviseCheckoutStatusRequest
	refunds       []wire.IssueRefundRequest
	pushErr       error

	categories   map[int][]wire.CategoryXML
	specificsIDs [][]string
	detailSites  []int
}

func (f *fakeTrading) GetOrders(_ context.Context, _ ebay.Session, q ebay.OrdersQuery) (*wire.GetOrdersResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderQueries = append(f.orderQueries, q)
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	if len(q.OrderIDs) > 0 {
		var out []wire.Order
		for _, p := range f.orderPages {
			for _, o := range p {
				if slices.Contains(q.OrderIDs, o.OrderID) {
					out = append(out, o)
				}
			}
		}
		return &wire.GetOrdersResult{Orders: out}, nil
	}
	if q.Page > len(f.orderPages) {
		return &wire.GetOrdersResult{}, nil
	}
	return &wire.GetOrdersResult{
		Orders:        f.orderPages[q.Page-1],
		HasMoreOrders: q.Page < len(f.orderPages),
		PageNumber:    q.Page,
	}, nil
}

func (f *fakeTrading) CompleteSale(_ context.Context, _ ebay.Session, req wire.CompleteSaleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeSales = append(f.completeSales, req)
	return f.pushErr
}

func (f *fakeTrading) ReviseCheckoutStatus(_ context.Context, _ ebay.Session, req wire.ReviseCheckoutStatusRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	return f.pushErr
}

func (f *fakeTrading) IssueRefund(_ context.Context, _ ebay.Session, req wire.IssueRefundRequest) (*wire.IssueRefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, req)
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return &wire.IssueRefundResult{}, nil
}

func (f *fakeTrading) GeteBayDetails(_ context.Context, sess ebay.Session, _ ...string) (*wire.GeteBayDetailsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailSites = append(f.detailSites, sess.SiteID)
	return &wire.GeteBayDetailsResult{ShippingServiceDetails: []wire.ShippingServiceDetails{
		{ShippingService: fmt.Sprintf("Standard_%d", sess.SiteID), ShippingCarrier: []string{"DHL"}, ValidForSellingFlow: true},
		{ShippingService: fmt.Sprintf("Express_%d", sess.SiteID), ValidForSellingFlow: true},
	}}, nil
}

func (f *fakeTrading) GetCategories(_ context.Context, sess ebay.Session) (*wire.GetCategoriesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &wire.GetCategoriesResult{Categories: f.categories[sess.SiteID]}, nil
}

func (f *fakeTrading) GetCategorySpecifics(_ context.Context, _ ebay.Session, ids []string) (*wire.GetCategorySpecificsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specificsIDs = append(f.specificsIDs, ids)
	res := &wire.GetCategorySpecificsResult{}
	for _, id := range ids {
		res.Recommendations = append(res.Recommendations, wire.Recommendations{
			CategoryID: id,
			Names:      []wire.NameRecommendation{{Name: "Brand"}},
		})
	}
	return res, nil
}

func (f *fakeTrading) GetCategoryFeatures(context.Context, ebay.Session) (*wire.GetCategoryFeaturesResult, error) {
	res := &wire.GetCategoryFeaturesResult{
		Categories: []wire.CategoryFeature{{CategoryID: "1000", VariationsEnabled: false}},
	}
	res.SiteDefaults.VariationsEnabled = true
	return res, nil
}

// fakeCore pages the change feeds and creates orders.
type fakeCore struct {
	mu       sync.Mutex
	products [][]core.ProductChange
	orders   [][]core.OrderChange
	returns  [][]core.ReturnChange
	since    []time.Time
	created  []string
	err      error
}

func page[T any](pages [][]T, n int) *core.Page[T] {
	if n > len(pages) {
		return &core.Page[T]{}
	}
	return &core.Page[T]{Results: pages[n-1], HasMore: n < len(pages)}
}

func (c *fakeCore) GetChangedProducts(_ context.Context, _ string, since time.Time, n int) (*core.Page[core.ProductChange], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.since = append(c.since, since)
	if c.err != nil {
		return nil, c.err
	}
	return page(c.products, n), nil
}

func (c *fakeCore) GetChangedOrders(_ context.Context, _ string, since time.Time, n int) (*core.Page[core.OrderChange], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.since = append(c.since, since)
	if c.err != nil {
		return nil, c.err
	}
	return page(c.orders, n), nil
}

func (c *fakeCore) GetChangedReturns(_ context.Context, _ string, since time.Time, n int) (*core.Page[core.ReturnChange], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.since = append(c.since, since)
	if c.err != nil {
		return nil, c.err
	}
	return page(c.returns, n), nil
}

func (c *fakeCore) CreateOrder(_ context.Context, _ string, o *domain.Order) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.created = append(c.created, o.EbayOrderID)
	return "core-" + o.EbayOrderID, nil
}

type queuedUpdate struct {
	listingID  string
	price      *decimal.Decimal
	quantity   *int
	variations []domain.VariationUpdate
}

type fakeUpdater struct {
	mu      sync.Mutex
	updates []queuedUpdate
}

func (u *fakeUpdater) QueueItemUpdate(
	_ context.Context,
	l *domain.Listing,
	price *decimal.Decimal,
	quantity *int,
	variations []domain.VariationUpdate,
) (*domain.ItemUpdate, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, queuedUpdate{l.ID, price, quantity, variations})
	return &domain.ItemUpdate{ListingID: l.ID}, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (q *fakeQueue) Enqueue(_ context.Context, t tasks.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *fakeQueue) names() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Name)
	}
	return out
}
