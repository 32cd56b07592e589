package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// SyncProducts turns core price and stock changes into item updates of the
// account's published listings.
func (s *Syncer) SyncProducts(ctx context.Context, acc *domain.Account) (Stats, error) {
	return Run(ctx, Job[core.ProductChange, *domain.Listing]{
		Domain:    string(domain.SyncProducts),
		Watermark: s.watermark(acc, domain.SyncProducts),
		Fetch: func(ctx context.Context, w Window, page int) ([]core.ProductChange, bool, error) {
			p, err := s.core.GetChangedProducts(ctx, acc.CoreAccountID, w.From, page)
			if err != nil {
				return nil, false, err
			}
			return p.Results, p.HasMore, nil
		},
		Locate: func(ctx context.Context, ch core.ProductChange) (*domain.Listing, error) {
			l, err := s.store.GetActiveListing(ctx, acc.ID, ch.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, Skip("product %d has no listing", ch.ID)
			}
			if err != nil {
				return nil, err
			}
			if l.Status != domain.StatusPublished {
				return nil, Skip("listing %s is %s", l.ID, l.Status)
			}
			return l, nil
		},
		Apply:  s.applyProductChange,
		Commit: s.commit(acc, domain.SyncProducts),
	}, s.options()...)
}

func (s *Syncer) applyProductChange(ctx context.Context, l *domain.Listing, ch core.ProductChange) error {
	var (
		price      *decimal.Decimal
		quantity   *int
		variations []domain.VariationUpdate
	)

	if !l.HasVariations() {
		if !ch.GrossPrice.Equal(l.GrossPrice) {
			p := ch.GrossPrice
			price = &p
		}
		if q := max(ch.Quantity, 0); q != l.Quantity {
			quantity = &q
		}
	} else {
		for _, vc := range ch.Variants {
			for _, v := range l.Variations {
				if v.CoreProductID != vc.ID {
					continue
				}
				vu := domain.VariationUpdate{VariationID: v.ID, SKU: v.SKU, Status: domain.UpdatePending}
				if !vc.GrossPrice.Equal(v.Price) {
					p := vc.GrossPrice
					vu.Price = &p
				}
				if q := max(vc.Quantity, 0); q != v.Quantity {
					vu.Quantity = &q
				}
				if vu.Price != nil || vu.Quantity != nil {
					variations = append(variations, vu)
				}
			}
		}
	}

	if price == nil && quantity == nil && len(variations) == 0 {
		return nil
	}
	if _, err := s.updater.QueueItemUpdate(ctx, l, price, quantity, variations); err != nil {
		return fmt.Errorf("queueing update of listing %s: %w", l.ID, err)
	}
	s.log.InfoContext(ctx, "queued item update from core change",
		"listing_id", l.ID,
		"product_id", ch.ID,
		"variations", len(variations),
	)
	return nil
}
