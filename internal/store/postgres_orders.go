package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// UpsertOrder inserts or refreshes the eBay side of an order. The core order
// id and core status are owned by the core sync and are read back, never
// overwritten.
func (s *PostgresStore) UpsertOrder(ctx context.Context, o *domain.Order) error {
	args := pgx.NamedArgs{
		"account_id":       o.AccountID,
		"ebay_order_id":    o.EbayOrderID,
		"buyer_user_id":    o.BuyerUserID,
		"buyer_email":      o.BuyerEmail,
		"total":            o.Total,
		"currency":         o.Currency,
		"payment_method":   o.PaymentMethod,
		"shipping_service": o.ShippingService,
		"shipping_address": o.ShippingAddress,
		"lines":            nonNil(o.Lines),
		"ebay_status":      o.EbayStatus,
		"tracking_number":  o.TrackingNumber,
		"carrier":          o.Carrier,
		"created_time":     nullTime(o.CreatedTime),
		"modified_time":    nullTime(o.ModifiedTime),
	}

	if err := s.pool.QueryRow(ctx, queryUpsertOrder, args).Scan(
		&o.ID, &o.CoreOrderID, &o.CoreStatus, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upserting order: %w", err)
	}
	return nil
}

// GetOrderByEbayID looks an order up by its eBay order id within an account.
func (s *PostgresStore) GetOrderByEbayID(
	ctx context.Context,
	accountID, ebayOrderID string,
) (*domain.Order, error) {
	return s.getOrder(ctx, queryGetOrderByEbayID, accountID, ebayOrderID)
}

// GetOrderByCoreID looks an order up by the core platform's order id.
func (s *PostgresStore) GetOrderByCoreID(ctx context.Context, coreOrderID string) (*domain.Order, error) {
	return s.getOrder(ctx, queryGetOrderByCoreID, coreOrderID)
}

func (s *PostgresStore) getOrder(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o := &domain.Order{}
	if err := scanOrder(s.pool.QueryRow(ctx, query, args...), o); err != nil {
		return nil, notFound(err, "getting order")
	}
	return o, nil
}

// SetCoreOrderID links a local order to the order created on the core
// platform. Relinking to a different core order is a conflict.
func (s *PostgresStore) SetCoreOrderID(ctx context.Context, id, coreOrderID string) error {
	tag, err := s.pool.Exec(ctx, querySetCoreOrderID, id, coreOrderID)
	if err != nil {
		return fmt.Errorf("setting core order id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateOrderCoreStatus stores the core platform's status aggregate.
func (s *PostgresStore) UpdateOrderCoreStatus(ctx context.Context, id string, st domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx, queryUpdateOrderCoreStatus, id, st)
	if err != nil {
		return fmt.Errorf("updating order core status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertReturn inserts or refreshes a return by its core id. The
// synced-with-eBay latch is read back and never cleared.
func (s *PostgresStore) UpsertReturn(ctx context.Context, r *domain.Return) error {
	args := pgx.NamedArgs{
		"order_id":       r.OrderID,
		"core_return_id": r.CoreReturnID,
		"refund_amount":  r.RefundAmount,
		"refund_type":    string(r.RefundType),
		"note":           r.Note,
	}
	if err := s.pool.QueryRow(ctx, queryUpsertReturn, args).Scan(
		&r.ID, &r.SyncedWithEbay, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upserting return: %w", err)
	}
	return nil
}

// GetReturnByCoreID looks a return up by the core platform's return id.
func (s *PostgresStore) GetReturnByCoreID(ctx context.Context, coreReturnID string) (*domain.Return, error) {
	r := &domain.Return{}
	if err := s.pool.QueryRow(ctx, queryGetReturnByCoreID, coreReturnID).Scan(
		&r.ID, &r.OrderID, &r.CoreReturnID, &r.RefundAmount, &r.RefundType, &r.Note,
		&r.SyncedWithEbay, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, notFound(err, "getting return")
	}
	return r, nil
}

// MarkReturnSynced sets the synced-with-eBay latch.
func (s *PostgresStore) MarkReturnSynced(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, queryMarkReturnSynced, id)
	if err != nil {
		return fmt.Errorf("marking return synced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row scannable, o *domain.Order) error {
	var createdTime, modifiedTime *time.Time
	if err := row.Scan(
		&o.ID, &o.AccountID, &o.EbayOrderID, &o.CoreOrderID, &o.BuyerUserID, &o.BuyerEmail,
		&o.Total, &o.Currency, &o.PaymentMethod, &o.ShippingService, &o.ShippingAddress, &o.Lines,
		&o.EbayStatus, &o.CoreStatus, &o.TrackingNumber, &o.Carrier, &createdTime, &modifiedTime,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return err
	}
	if createdTime != nil {
		o.CreatedTime = *createdTime
	}
	if modifiedTime != nil {
		o.ModifiedTime = *modifiedTime
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
