package syncer

import (
	"context"
	"fmt"

	"github.com/donaldgifford/ebay-connector/internal/tasks"
)

// Task names.
const (
	TaskCreateOrder = "core.create_order"
	TaskSyncOrders  = "orders.sync"
)

type createOrderTask struct {
	AccountID   string `json:"account_id"`
	EbayOrderID string `json:"ebay_order_id"`
}

type syncOrdersTask struct {
	AccountID string   `json:"account_id"`
	OrderIDs  []string `json:"order_ids"`
}

// EnqueueCreateOrder queues the creation of a mirrored order on the core
// platform.
func (s *Syncer) EnqueueCreateOrder(ctx context.Context, accountID, ebayOrderID string) error {
	t, err := tasks.New(TaskCreateOrder, accountID, createOrderTask{AccountID: accountID, EbayOrderID: ebayOrderID})
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, t); err != nil {
		return fmt.Errorf("queueing core order for %s: %w", ebayOrderID, err)
	}
	return nil
}

// EnqueueOrderSync queues a sync of specific eBay orders of an account.
func (s *Syncer) EnqueueOrderSync(ctx context.Context, accountID string, orderIDs ...string) error {
	t, err := tasks.New(TaskSyncOrders, accountID, syncOrdersTask{AccountID: accountID, OrderIDs: orderIDs})
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, t); err != nil {
		return fmt.Errorf("queueing order sync for %s: %w", accountID, err)
	}
	return nil
}

// RegisterTasks binds the order tasks to exec.
func (s *Syncer) RegisterTasks(exec *tasks.Executor, policy tasks.RetryPolicy) {
	exec.Register(TaskCreateOrder, s.handleCreateOrder, tasks.WithPolicy(policy))
	exec.Register(TaskSyncOrders, s.handleSyncOrders, tasks.WithPolicy(policy))
}

func (s *Syncer) handleCreateOrder(ctx context.Context, t tasks.Task) error {
	var p createOrderTask
	if err := t.Decode(&p); err != nil {
		return err
	}

	acc, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return fmt.Errorf("loading account %s: %w", p.AccountID, err)
	}
	o, err := s.store.GetOrderByEbayID(ctx, p.AccountID, p.EbayOrderID)
	if err != nil {
		return fmt.Errorf("loading order %s: %w", p.EbayOrderID, err)
	}
	if o.CoreOrderID != nil {
		return nil
	}

	coreID, err := s.core.CreateOrder(ctx, acc.CoreAccountID, o)
	if err != nil {
		return err
	}
	if err := s.store.SetCoreOrderID(ctx, o.ID, coreID); err != nil {
		return fmt.Errorf("linking order %s to core order %s: %w", o.ID, coreID, err)
	}
	s.log.InfoContext(ctx, "core order created", "order_id", o.ID, "ebay_order_id", o.EbayOrderID, "core_order_id", coreID)
	return nil
}

func (s *Syncer) handleSyncOrders(ctx context.Context, t tasks.Task) error {
	var p syncOrdersTask
	if err := t.Decode(&p); err != nil {
		return err
	}
	acc, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return fmt.Errorf("loading account %s: %w", p.AccountID, err)
	}
	return s.SyncOrderIDs(ctx, acc, p.OrderIDs)
}
