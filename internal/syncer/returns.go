package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// SyncReturns mirrors core returns of eBay orders and refunds the buyer on
// eBay once per return.
func (s *Syncer) SyncReturns(ctx context.Context, acc *domain.Account) (Stats, error) {
	return Run(ctx, Job[core.ReturnChange, *domain.Order]{
		Domain:    string(domain.SyncReturns),
		Watermark: s.watermark(acc, domain.SyncReturns),
		Fetch: func(ctx context.Context, w Window, page int) ([]core.ReturnChange, bool, error) {
			p, err := s.core.GetChangedReturns(ctx, acc.CoreAccountID, w.From, page)
			if err != nil {
				return nil, false, err
			}
			return p.Results, p.HasMore, nil
		},
		Locate: func(ctx context.Context, ch core.ReturnChange) (*domain.Order, error) {
			o, err := s.store.GetOrderByCoreID(ctx, ch.OrderID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, Skip("return %s references unknown order %s", ch.ID, ch.OrderID)
			}
			if err != nil {
				return nil, err
			}
			if o.AccountID != acc.ID {
				return nil, Skip("order %s belongs to account %s", o.ID, o.AccountID)
			}
			return o, nil
		},
		Apply: func(ctx context.Context, o *domain.Order, ch core.ReturnChange) error {
			return s.applyReturn(ctx, acc, o, ch)
		},
		Commit: s.commit(acc, domain.SyncReturns),
	}, s.options()...)
}

func (s *Syncer) applyReturn(ctx context.Context, acc *domain.Account, o *domain.Order, ch core.ReturnChange) error {
	r := &domain.Return{
		OrderID:      o.ID,
		CoreReturnID: ch.ID,
		RefundAmount: ch.RefundAmount,
		RefundType:   ch.RefundType,
		Note:         ch.Note,
	}
	if err := s.store.UpsertReturn(ctx, r); err != nil {
		return fmt.Errorf("saving return %s: %w", ch.ID, err)
	}
	if r.SyncedWithEbay {
		return nil
	}

	_, err := s.trading.IssueRefund(ctx, session(acc), wire.EncodeRefund(o, r))
	if appErr, ok := ebay.AsApplication(err); ok {
		s.log.WarnContext(ctx, "eBay rejected refund",
			"return_id", r.ID,
			"ebay_order_id", o.EbayOrderID,
			"error", appErr,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("refunding return %s: %w", r.ID, err)
	}

	if err := s.store.MarkReturnSynced(ctx, r.ID); err != nil {
		return fmt.Errorf("marking return %s synced: %w", r.ID, err)
	}
	s.log.InfoContext(ctx, "refund issued on eBay", "return_id", r.ID, "ebay_order_id", o.EbayOrderID)
	return nil
}
