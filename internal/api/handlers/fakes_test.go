package handlers_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/donaldgifford/ebay-connector/internal/api/handlers"
	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/publish"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const authHeader = "X-Auth-User: alice"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alice() *domain.Account {
	return &domain.Account{
		ID:            "acc-1",
		Username:      "alice",
		CoreAccountID: "core-1",
		Country:       "DE",
		SiteID:        77,
		Token:         &domain.Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		Location:      &domain.Location{LocationID: "store-1", City: "Berlin", PostalCode: "10115"},
	}
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	err      error
	saved    []domain.Account
}

func newFakeAccounts(accs ...*domain.Account) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[string]*domain.Account)}
	for _, a := range accs {
		f.accounts[a.Username] = a
	}
	return f
}

func (f *fakeAccounts) GetAccountByUsername(_ context.Context, username string) (*domain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeAccounts) UpsertAccount(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *a)
	return nil
}

// newAuthedAPI returns a test API and the authentication middleware for
// alice's account.
func newAuthedAPI(t *testing.T, accs *fakeAccounts) (humatest.TestAPI, []func(huma.Context, func(huma.Context))) {
	t.Helper()
	_, api := humatest.New(t)
	mw := handlers.Authenticate(api, accs, "", quietLogger())
	return api, []func(huma.Context, func(huma.Context)){mw}
}

type fakeProducts struct {
	products map[int64]*domain.Product
	err      error
}

func (f *fakeProducts) GetProduct(_ context.Context, _ string, id int64) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

type fakePublisher struct {
	mu         sync.Mutex
	listings   map[int64]*domain.Listing
	configs    []domain.ListingConfig
	validation map[string]publish.ValidationErrors
	submitErr  map[string]error
	unpublish  error
	refreshErr error
	submitted  []string
	batches    [][]string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		listings:   make(map[int64]*domain.Listing),
		validation: make(map[string]publish.ValidationErrors),
		submitErr:  make(map[string]error),
	}
}

func listingID(productID int64) string {
	return "lst-" + strconv.FormatInt(productID, 10)
}

func (f *fakePublisher) Prepare(
	_ context.Context,
	acc *domain.Account,
	p *domain.Product,
	cfg domain.ListingConfig,
) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if l, ok := f.listings[p.ID]; ok {
		return l, nil
	}
	l := &domain.Listing{
		ID:            listingID(p.ID),
		AccountID:     acc.ID,
		CoreProductID: p.ID,
		SKU:           "invtest_" + strconv.FormatInt(p.ID, 10),
		Status:        domain.StatusDraft,
		CategoryID:    cfg.CategoryID,
	}
	f.listings[p.ID] = l
	return l, nil
}

func (f *fakePublisher) Refresh(
	ctx context.Context,
	acc *domain.Account,
	p *domain.Product,
	cfg domain.ListingConfig,
) (*domain.Listing, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	l, _ := f.Prepare(ctx, acc, p, cfg)
	l.Title = p.Name
	return l, nil
}

func (f *fakePublisher) Submit(_ context.Context, id string, _ *domain.Account) (publish.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, id)
	if err := f.submitErr[id]; err != nil {
		return publish.Result{}, err
	}
	var l *domain.Listing
	for _, cand := range f.listings {
		if cand.ID == id {
			l = cand
		}
	}
	if v := f.validation[id]; len(v) > 0 {
		return publish.Result{Outcome: publish.OutcomeValidationFailed, Listing: l, Validation: v}, nil
	}
	l.Status = domain.StatusInProgress
	return publish.Result{Outcome: publish.OutcomeQueued, Listing: l}, nil
}

func (f *fakePublisher) SubmitMany(
	ctx context.Context,
	ids []string,
	acc *domain.Account,
) (map[string]*domain.Listing, map[string]error) {
	f.mu.Lock()
	f.batches = append(f.batches, ids)
	f.mu.Unlock()

	submitted := make(map[string]*domain.Listing)
	errs := make(map[string]error)
	for _, id := range ids {
		res, err := f.Submit(ctx, id, acc)
		switch {
		case err != nil:
			errs[id] = err
		case res.Outcome == publish.OutcomeValidationFailed:
			errs[id] = res.Validation
		default:
			submitted[id] = res.Listing
		}
	}
	return submitted, errs
}

func (f *fakePublisher) Unpublish(_ context.Context, id string, _ *domain.Account) (*domain.Listing, error) {
	if f.unpublish != nil {
		return nil, f.unpublish
	}
	for _, l := range f.listings {
		if l.ID == id {
			l.Status = domain.StatusUnpublished
			return l, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakePublisher) GetActiveListing(_ context.Context, _ string, productID int64) (*domain.Listing, error) {
	l, ok := f.listings[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l, nil
}
