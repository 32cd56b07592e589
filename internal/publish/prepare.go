package publish

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/inventory"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// maxTitleLength is eBay's title limit in characters.
const maxTitleLength = 80

// ErrBusy is returned when a listing cannot be changed while a publish
// attempt is running.
var ErrBusy = errors.New("listing is being published")

// Draft builds a listing snapshot of p for acc. It does not touch the store.
func Draft(p *domain.Product, acc *domain.Account, cfg domain.ListingConfig, skuPrefix string) *domain.Listing {
	l := &domain.Listing{
		AccountID:       acc.ID,
		CoreProductID:   p.ID,
		SKU:             inventory.FormatSKU(skuPrefix, p.ID),
		Status:          domain.StatusDraft,
		Title:           truncate(p.Name, maxTitleLength),
		Description:     p.Description,
		ImageURLs:       slices.Clone(p.Images),
		GrossPrice:      p.GrossPrice,
		Currency:        acc.Currency,
		Quantity:        max(p.Quantity, 0),
		TaxRate:         p.TaxRate,
		CategoryID:      cfg.CategoryID,
		Specifics:       mergeSpecifics(p.Attributes, cfg.Specifics),
		Shipping:        cfg.Shipping,
		ReturnPolicy:    acc.ReturnPolicy,
		ClickAndCollect: cfg.ClickAndCollect,
	}
	if len(l.Shipping) == 0 {
		l.Shipping = slices.Clone(acc.Shipping)
	}

	if len(p.Variants) > 0 {
		l.Quantity = 0
		l.Variations = make([]domain.Variation, 0, len(p.Variants))
		for _, v := range p.Variants {
			l.Variations = append(l.Variations, domain.Variation{
				ID:            uuid.NewString(),
				CoreProductID: v.ID,
				SKU:           inventory.FormatSKU(skuPrefix, v.ID),
				Price:         v.GrossPrice,
				Quantity:      max(v.Quantity, 0),
				Specifics:     slices.Clone(v.Attributes),
			})
			l.Quantity += max(v.Quantity, 0)
		}
	}
	return l
}

// mergeSpecifics overlays explicit specifics onto product attributes by name.
func mergeSpecifics(attrs, overrides []domain.NameValue) []domain.NameValue {
	out := slices.Clone(attrs)
	for _, o := range overrides {
		i := slices.IndexFunc(out, func(nv domain.NameValue) bool { return nv.Name == o.Name })
		if i >= 0 {
			out[i] = o
			continue
		}
		out = append(out, o)
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Prepare returns the live listing of p for acc, creating a draft snapshot
// when there is none. Calling it twice returns the same listing.
func (s *Service) Prepare(
	ctx context.Context,
	acc *domain.Account,
	p *domain.Product,
	cfg domain.ListingConfig,
) (*domain.Listing, error) {
	existing, err := s.store.GetActiveListing(ctx, acc.ID, p.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up listing of product %d: %w", p.ID, err)
	}

	l := Draft(p, acc, cfg, s.skuPrefix)
	if err := s.store.CreateListing(ctx, l); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race against a concurrent Prepare.
			return s.store.GetActiveListing(ctx, acc.ID, p.ID)
		}
		return nil, fmt.Errorf("creating listing of product %d: %w", p.ID, err)
	}

	s.log.Info("listing prepared",
		"listing_id", l.ID,
		"account_id", acc.ID,
		"product_id", p.ID,
		"sku", l.SKU,
	)
	return l, nil
}

// Refresh re-snapshots p onto its live listing. Price and quantity of a
// published listing are not overwritten; changes to them are queued as an
// item update instead.
func (s *Service) Refresh(
	ctx context.Context,
	acc *domain.Account,
	p *domain.Product,
	cfg domain.ListingConfig,
) (*domain.Listing, error) {
	l, err := s.Prepare(ctx, acc, p, cfg)
	if err != nil {
		return nil, err
	}
	if l.Status == domain.StatusInProgress {
		return nil, fmt.Errorf("%w: %s", ErrBusy, l.ID)
	}

	fresh := Draft(p, acc, cfg, s.skuPrefix)
	fresh.Variations = keepVariationIDs(l.Variations, fresh.Variations)

	var change *stockChange
	if l.Status == domain.StatusPublished {
		change = diffStock(l, fresh)
		fresh.GrossPrice, fresh.Quantity = l.GrossPrice, l.Quantity
		fresh.Variations = keepStock(l.Variations, fresh.Variations)
	}

	fresh.ID = l.ID
	fresh.Status = l.Status
	fresh.StatusDetails = l.StatusDetails
	fresh.EbayItemID = l.EbayItemID
	fresh.PublishedAt, fresh.UnpublishedAt, fresh.EndsAt = l.PublishedAt, l.UnpublishedAt, l.EndsAt
	fresh.CreatedAt = l.CreatedAt

	if err := s.store.UpdateListingSnapshot(ctx, fresh); err != nil {
		return nil, fmt.Errorf("refreshing listing %s: %w", l.ID, err)
	}

	if change != nil {
		if _, err := s.QueueItemUpdate(ctx, fresh, change.price, change.quantity, change.variations); err != nil {
			return nil, err
		}
	}
	return fresh, nil
}

type stockChange struct {
	price      *decimal.Decimal
	quantity   *int
	variations []domain.VariationUpdate
}

// diffStock compares the published snapshot with a fresh one. Nil when
// neither price nor quantity moved.
func diffStock(old, fresh *domain.Listing) *stockChange {
	c := &stockChange{}
	changed := false

	if !fresh.HasVariations() {
		if !fresh.GrossPrice.Equal(old.GrossPrice) {
			p := fresh.GrossPrice
			c.price = &p
			changed = true
		}
		if fresh.Quantity != old.Quantity {
			q := fresh.Quantity
			c.quantity = &q
			changed = true
		}
		if !changed {
			return nil
		}
		return c
	}

	for _, v := range fresh.Variations {
		i := slices.IndexFunc(old.Variations, func(o domain.Variation) bool { return o.SKU == v.SKU })
		if i < 0 {
			continue
		}
		prev := old.Variations[i]
		vu := domain.VariationUpdate{VariationID: prev.ID, SKU: v.SKU, Status: domain.UpdateDraft}
		if !v.Price.Equal(prev.Price) {
			p := v.Price
			vu.Price = &p
		}
		if v.Quantity != prev.Quantity {
			q := v.Quantity
			vu.Quantity = &q
		}
		if vu.Price != nil || vu.Quantity != nil {
			c.variations = append(c.variations, vu)
		}
	}
	if len(c.variations) == 0 {
		return nil
	}
	return c
}

func keepVariationIDs(old, fresh []domain.Variation) []domain.Variation {
	for i := range fresh {
		j := slices.IndexFunc(old, func(o domain.Variation) bool { return o.SKU == fresh[i].SKU })
		if j >= 0 {
			fresh[i].ID = old[j].ID
		}
	}
	return fresh
}

func keepStock(old, fresh []domain.Variation) []domain.Variation {
	for i := range fresh {
		j := slices.IndexFunc(old, func(o domain.Variation) bool { return o.SKU == fresh[i].SKU })
		if j >= 0 {
			fresh[i].Price, fresh[i].Quantity = old[j].Price, old[j].Quantity
		}
	}
	return fresh
}

// ValidateListing resolves the category and its specifics for the account's
// country and runs Validate.
func (s *Service) ValidateListing(
	ctx context.Context,
	l *domain.Listing,
	acc *domain.Account,
) (ValidationErrors, error) {
	in := ValidationInput{
		Listing:             l,
		Account:             acc,
		MinimumPrice:        s.minimumPrice,
		RequireReturnPolicy: s.requiresReturnPolicy(acc.Country),
	}

	if l.CategoryID != "" {
		cat, err := s.store.GetCategory(ctx, acc.Country, l.CategoryID)
		switch {
		case err == nil:
			in.Category = cat
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("loading category %s: %w", l.CategoryID, err)
		}
	}
	if in.Category != nil && in.Category.IsLeaf {
		specs, err := s.store.ListSpecifics(ctx, acc.Country, l.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("loading specifics of %s: %w", l.CategoryID, err)
		}
		in.Specifics = specs
	}

	return Validate(in), nil
}
