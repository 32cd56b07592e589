package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/inventory"
	"github.com/donaldgifford/ebay-connector/internal/metrics"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const domainOrderStatus = "order_status"

// SyncOrders mirrors eBay orders modified since the orders watermark, then
// pushes core-side status changes back to eBay. Both feeds share one
// watermark, committed once both succeeded.
func (s *Syncer) SyncOrders(ctx context.Context, acc *domain.Account) (Stats, error) {
	pull, err := Run(ctx, s.pullOrdersJob(acc), s.options()...)
	if err != nil {
		return pull, err
	}
	push, err := Run(ctx, s.pushStatusJob(acc), s.options()...)
	if err != nil {
		return pull, err
	}

	// The pull's watermark was taken first, so it covers both feeds.
	if err := s.store.UpdateWatermark(ctx, acc.ID, domain.SyncOrders, pull.Watermark); err != nil {
		return pull, fmt.Errorf("committing orders watermark: %w", err)
	}
	metrics.SyncWatermarkAge.WithLabelValues(string(domain.SyncOrders)).Set(time.Since(pull.Watermark).Seconds())

	return Stats{
		Domain:    string(domain.SyncOrders),
		Pages:     pull.Pages + push.Pages,
		Applied:   pull.Applied + push.Applied,
		Skipped:   pull.Skipped + push.Skipped,
		Watermark: pull.Watermark,
	}, nil
}

// SyncOrderIDs mirrors specific eBay orders, e.g. after a sale notification.
func (s *Syncer) SyncOrderIDs(ctx context.Context, acc *domain.Account, orderIDs []string) error {
	res, err := s.trading.GetOrders(ctx, session(acc), ebay.OrdersQuery{OrderIDs: orderIDs})
	if err != nil {
		return fmt.Errorf("fetching orders %v: %w", orderIDs, err)
	}
	for _, o := range res.Orders {
		existing, err := s.locateEbayOrder(ctx, acc, o)
		if errors.Is(err, ErrSkip) {
			s.log.InfoContext(ctx, "skipping order", "ebay_order_id", o.OrderID, "reason", err)
			continue
		}
		if err != nil {
			return err
		}
		if err := s.applyEbayOrder(ctx, acc, existing, o); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) pullOrdersJob(acc *domain.Account) Job[wire.Order, *domain.Order] {
	var pager *ebay.OrderPager
	return Job[wire.Order, *domain.Order]{
		Domain:    string(domain.SyncOrders),
		Watermark: s.watermark(acc, domain.SyncOrders),
		Fetch: func(ctx context.Context, w Window, page int) ([]wire.Order, bool, error) {
			if pager == nil {
				pager = ebay.NewOrderPager(s.trading, session(acc), w.From, w.To,
					ebay.WithPageSize(s.pageSize),
					ebay.WithMaxPages(s.maxPages),
					ebay.WithPagerLogger(s.log),
				)
			}
			return pager.Page(ctx, page)
		},
		Locate: func(ctx context.Context, o wire.Order) (*domain.Order, error) {
			return s.locateEbayOrder(ctx, acc, o)
		},
		Apply: func(ctx context.Context, existing *domain.Order, o wire.Order) error {
			return s.applyEbayOrder(ctx, acc, existing, o)
		},
	}
}

// locateEbayOrder returns the mirrored order, or nil for an order seen for
// the first time. Orders without a SKU of this environment are skipped.
func (s *Syncer) locateEbayOrder(ctx context.Context, acc *domain.Account, o wire.Order) (*domain.Order, error) {
	if !s.ownsOrder(o) {
		return nil, Skip("order %s has no SKU with prefix %q", o.OrderID, s.skuPrefix)
	}
	existing, err := s.store.GetOrderByEbayID(ctx, acc.ID, o.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Syncer) ownsOrder(o wire.Order) bool {
	if s.skuPrefix == "" {
		return true
	}
	for _, t := range o.Transactions {
		sku := t.Item.SKU
		if t.Variation != nil && t.Variation.SKU != "" {
			sku = t.Variation.SKU
		}
		if inventory.BelongsToCurrentEnv(s.skuPrefix, sku) {
			return true
		}
	}
	return false
}

func (s *Syncer) applyEbayOrder(ctx context.Context, acc *domain.Account, existing *domain.Order, o wire.Order) error {
	next := o.ToDomain(s.paymentMethods)
	next.AccountID = acc.ID
	if existing != nil {
		next.ID = existing.ID
		next.CoreOrderID = existing.CoreOrderID
		next.CoreStatus = existing.CoreStatus
	}
	if err := s.store.UpsertOrder(ctx, &next); err != nil {
		return fmt.Errorf("saving order %s: %w", o.OrderID, err)
	}
	if next.CoreOrderID != nil {
		return nil
	}
	return s.EnqueueCreateOrder(ctx, acc.ID, next.EbayOrderID)
}

func (s *Syncer) pushStatusJob(acc *domain.Account) Job[core.OrderChange, *domain.Order] {
	return Job[core.OrderChange, *domain.Order]{
		Domain:    domainOrderStatus,
		Watermark: s.watermark(acc, domain.SyncOrders),
		Fetch: func(ctx context.Context, w Window, page int) ([]core.OrderChange, bool, error) {
			p, err := s.core.GetChangedOrders(ctx, acc.CoreAccountID, w.From, page)
			if err != nil {
				return nil, false, err
			}
			return p.Results, p.HasMore, nil
		},
		Locate: func(ctx context.Context, ch core.OrderChange) (*domain.Order, error) {
			o, err := s.store.GetOrderByCoreID(ctx, ch.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, Skip("core order %s is not an eBay order", ch.ID)
			}
			if err != nil {
				return nil, err
			}
			if o.AccountID != acc.ID {
				return nil, Skip("core order %s belongs to account %s", ch.ID, o.AccountID)
			}
			return o, nil
		},
		Apply: func(ctx context.Context, o *domain.Order, ch core.OrderChange) error {
			return s.applyCoreStatus(ctx, acc, o, ch)
		},
	}
}

// applyCoreStatus records the core-side flags and pushes payment and
// shipment to eBay where eBay lags behind. eBay rejections are logged; only
// transport failures abort the run.
func (s *Syncer) applyCoreStatus(ctx context.Context, acc *domain.Account, o *domain.Order, ch core.OrderChange) error {
	if o.CoreStatus != ch.Status {
		if err := s.store.UpdateOrderCoreStatus(ctx, o.ID, ch.Status); err != nil {
			return fmt.Errorf("saving core status of order %s: %w", o.ID, err)
		}
		o.CoreStatus = ch.Status
	}
	if ch.TrackingNumber != "" {
		o.TrackingNumber, o.Carrier = ch.TrackingNumber, ch.Carrier
	}

	changed := false
	if o.CoreStatus.IsPaid && !o.EbayStatus.IsPaid && !o.EbayStatus.IsCanceled {
		err := s.trading.ReviseCheckoutStatus(ctx, session(acc), wire.ReviseCheckoutStatusRequest{
			OrderID:        o.EbayOrderID,
			CheckoutStatus: "Complete",
			PaymentMethod:  "CustomCode",
			AmountPaid:     wire.NewAmount(o.Total, o.Currency),
		})
		ok, err := s.pushed(ctx, o, "ReviseCheckoutStatus", err)
		if err != nil {
			return err
		}
		if ok {
			o.EbayStatus.IsPaid = true
			changed = true
		}
	}

	if o.CoreStatus.IsShipped && !o.EbayStatus.IsShipped && !o.EbayStatus.IsCanceled {
		shipped := true
		req := wire.CompleteSaleRequest{OrderID: o.EbayOrderID, Shipped: &shipped}
		if o.TrackingNumber != "" {
			req.Shipment = &wire.Shipment{ShipmentTrackingDetails: &wire.ShipmentTracking{
				ShipmentTrackingNumber: o.TrackingNumber,
				ShippingCarrierUsed:    o.Carrier,
			}}
		}
		ok, err := s.pushed(ctx, o, "CompleteSale", s.trading.CompleteSale(ctx, session(acc), req))
		if err != nil {
			return err
		}
		if ok {
			o.EbayStatus.IsShipped = true
			changed = true
		}
	}

	if !changed {
		return nil
	}
	if err := s.store.UpsertOrder(ctx, o); err != nil {
		return fmt.Errorf("saving order %s: %w", o.ID, err)
	}
	return nil
}

// pushed reports whether a status push went through. eBay rejections are
// swallowed so one bad order does not hold back the watermark.
func (s *Syncer) pushed(ctx context.Context, o *domain.Order, call string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if appErr, ok := ebay.AsApplication(err); ok {
		s.log.WarnContext(ctx, "eBay rejected order status",
			"call", call,
			"order_id", o.ID,
			"ebay_order_id", o.EbayOrderID,
			"error", appErr,
		)
		return false, nil
	}
	return false, fmt.Errorf("pushing %s of order %s: %w", call, o.EbayOrderID, err)
}
