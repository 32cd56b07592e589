package publish

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/inventory"
	"github.com/donaldgifford/ebay-connector/internal/metrics"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// QueueItemUpdate records a price/quantity change of a published listing
// and queues it. For variation listings only variations are revised.
func (s *Service) QueueItemUpdate(
	ctx context.Context,
	l *domain.Listing,
	price *decimal.Decimal,
	quantity *int,
	variations []domain.VariationUpdate,
) (*domain.ItemUpdate, error) {
	if l.Status != domain.StatusPublished || l.EbayItemID == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPublished, l.ID, l.Status)
	}

	u := &domain.ItemUpdate{
		ListingID:        l.ID,
		Status:           domain.UpdatePending,
		Price:            price,
		Quantity:         quantity,
		VariationUpdates: variations,
	}
	if err := s.store.CreateItemUpdate(ctx, u); err != nil {
		return nil, fmt.Errorf("creating item update for %s: %w", l.ID, err)
	}

	// Keyed by listing so one listing's updates stay ordered.
	t, err := tasks.New(TaskApplyUpdate, l.ID, updateTask{UpdateID: u.ID})
	if err == nil {
		err = s.queue.Enqueue(ctx, t)
	}
	if err != nil {
		u.Status = domain.UpdateFailed
		u.StatusDetails = append(u.StatusDetails, domain.FatalStatusDetail(err))
		if saveErr := s.store.SaveItemUpdate(ctx, u); saveErr != nil {
			s.log.Error("failing item update after enqueue error", "update_id", u.ID, "error", saveErr)
		}
		return nil, fmt.Errorf("queueing item update %s: %w", u.ID, err)
	}

	metrics.ItemUpdatesTotal.WithLabelValues(string(domain.UpdatePending)).Inc()
	return u, nil
}

// ApplyItemUpdate sends a queued update to eBay with ReviseInventoryStatus,
// at most four entries per call. Every call is recorded as an API attempt.
// Transport errors are returned for retry; variations already revised are
// skipped on the next attempt. eBay rejections fail the affected entries.
func (s *Service) ApplyItemUpdate(ctx context.Context, updateID string) error {
	u, err := s.store.GetItemUpdate(ctx, updateID)
	if err != nil {
		return fmt.Errorf("loading item update %s: %w", updateID, err)
	}
	if u.Status.Terminal() {
		return nil
	}

	l, err := s.store.GetListing(ctx, u.ListingID)
	if err != nil {
		return fmt.Errorf("loading listing %s: %w", u.ListingID, err)
	}
	if l.Status != domain.StatusPublished || l.EbayItemID == nil {
		u.Status = domain.UpdateFailed
		u.StatusDetails = append(u.StatusDetails,
			domain.FatalStatusDetail(fmt.Errorf("%w: %s is %s", ErrNotPublished, l.ID, l.Status)))
		return s.finishUpdate(ctx, u, l, nil, false)
	}

	acc, err := s.store.GetAccount(ctx, l.AccountID)
	if err != nil {
		return fmt.Errorf("loading account %s: %w", l.AccountID, err)
	}

	u.Status = domain.UpdateInProgress
	if err := s.store.SaveItemUpdate(ctx, u); err != nil {
		return fmt.Errorf("starting item update %s: %w", u.ID, err)
	}

	itemID := *l.EbayItemID
	if !l.HasVariations() || len(u.VariationUpdates) == 0 {
		return s.applyItemLevel(ctx, u, l, acc, itemID)
	}

	pending := make([]int, 0, len(u.VariationUpdates))
	for i, vu := range u.VariationUpdates {
		if vu.Status != domain.UpdateSucceeded && vu.Status != domain.UpdateFailed {
			pending = append(pending, i)
		}
	}

	changed := false
	for chunk := range slices.Chunk(pending, wire.MaxInventoryStatusPerCall) {
		statuses := make([]wire.InventoryStatus, 0, len(chunk))
		for _, i := range chunk {
			vu := &u.VariationUpdates[i]
			vu.Status = domain.UpdateInProgress
			statuses = append(statuses, wire.EncodeInventoryStatus(itemID, vu.SKU, vu.Price, vu.Quantity, l.Currency))
		}

		err := s.reviseInventory(ctx, u, l, acc, statuses)
		switch {
		case err == nil:
			for _, i := range chunk {
				vu := &u.VariationUpdates[i]
				vu.Status = domain.UpdateSucceeded
				applyVariation(l, vu)
			}
			changed = true
		case ebay.IsTransport(err):
			for _, i := range chunk {
				u.VariationUpdates[i].Status = domain.UpdatePending
			}
			if saveErr := s.saveProgress(ctx, u, l, changed); saveErr != nil {
				s.log.Error("saving item update progress", "update_id", u.ID, "error", saveErr)
			}
			return err
		default:
			for _, i := range chunk {
				u.VariationUpdates[i].Status = domain.UpdateFailed
			}
			u.StatusDetails = append(u.StatusDetails, failureDetails(err)...)
		}
	}

	failed := slices.ContainsFunc(u.VariationUpdates, func(vu domain.VariationUpdate) bool {
		return vu.Status == domain.UpdateFailed
	})
	u.Status = domain.UpdateSucceeded
	if failed {
		u.Status = domain.UpdateFailed
	}
	return s.finishUpdate(ctx, u, l, acc, changed)
}

func (s *Service) applyItemLevel(
	ctx context.Context,
	u *domain.ItemUpdate,
	l *domain.Listing,
	acc *domain.Account,
	itemID string,
) error {
	if u.Price == nil && u.Quantity == nil {
		u.Status = domain.UpdateSucceeded
		return s.finishUpdate(ctx, u, l, acc, false)
	}

	st := wire.EncodeInventoryStatus(itemID, "", u.Price, u.Quantity, l.Currency)
	err := s.reviseInventory(ctx, u, l, acc, []wire.InventoryStatus{st})
	switch {
	case err == nil:
		if u.Price != nil {
			l.GrossPrice = *u.Price
		}
		if u.Quantity != nil {
			l.Quantity = *u.Quantity
		}
		u.Status = domain.UpdateSucceeded
		return s.finishUpdate(ctx, u, l, acc, true)
	case ebay.IsTransport(err):
		return err
	default:
		u.Status = domain.UpdateFailed
		u.StatusDetails = append(u.StatusDetails, failureDetails(err)...)
		return s.finishUpdate(ctx, u, l, acc, false)
	}
}

func (s *Service) reviseInventory(
	ctx context.Context,
	u *domain.ItemUpdate,
	l *domain.Listing,
	acc *domain.Account,
	statuses []wire.InventoryStatus,
) error {
	ex := &ebay.Exchange{}
	_, err := s.gateway.ReviseInventoryStatus(ebay.WithExchange(ctx, ex), session(acc), statuses)
	updateID := u.ID
	s.recordAttempt(ctx, l.ID, &updateID, domain.AttemptUpdate, err == nil, ex)
	return err
}

// saveProgress persists a partially applied update before a retry.
func (s *Service) saveProgress(ctx context.Context, u *domain.ItemUpdate, l *domain.Listing, changed bool) error {
	if err := s.store.SaveItemUpdate(ctx, u); err != nil {
		return err
	}
	if changed {
		return s.store.UpdateListingStock(ctx, l)
	}
	return nil
}

func (s *Service) finishUpdate(
	ctx context.Context,
	u *domain.ItemUpdate,
	l *domain.Listing,
	acc *domain.Account,
	changed bool,
) error {
	if err := s.saveProgress(ctx, u, l, changed); err != nil {
		return fmt.Errorf("finishing item update %s: %w", u.ID, err)
	}
	metrics.ItemUpdatesTotal.WithLabelValues(string(u.Status)).Inc()
	s.log.Info("item update finished", "update_id", u.ID, "listing_id", l.ID, "status", u.Status)

	if changed && l.ClickAndCollect && acc != nil {
		if err := inventory.PushQuantities(ctx, s.gateway, acc, []domain.Listing{*l}); err != nil {
			s.log.Warn("pushing pickup stock", "listing_id", l.ID, "error", err)
		}
	}
	return nil
}

func applyVariation(l *domain.Listing, vu *domain.VariationUpdate) {
	for i := range l.Variations {
		v := &l.Variations[i]
		if v.SKU != vu.SKU {
			continue
		}
		if vu.Price != nil {
			v.Price = *vu.Price
		}
		if vu.Quantity != nil {
			v.Quantity = *vu.Quantity
		}
	}
	l.Quantity = 0
	for _, v := range l.Variations {
		l.Quantity += v.Quantity
	}
}

// failureDetails turns an eBay rejection into its verbatim details and any
// other error into a fatal entry.
func failureDetails(err error) []domain.StatusDetail {
	var appErr *ebay.ApplicationError
	if errors.As(err, &appErr) && len(appErr.Details) > 0 {
		return appErr.Details
	}
	return []domain.StatusDetail{domain.FatalStatusDetail(err)}
}
