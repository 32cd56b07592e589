package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/ebay-connector/internal/metrics"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Store persists the audit trail and resolves the receiving account.
type Store interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	UpdateNotificationStatus(ctx context.Context, id string, status domain.NotificationStatus, details json.RawMessage) error
	GetAccountByEbayUserID(ctx context.Context, ebayUserID string) (*domain.Account, error)
}

// ItemCloser ends the local listing of an item eBay closed.
type ItemCloser interface {
	MarkClosed(ctx context.Context, ebayItemID string) error
}

// OrderSyncer schedules a sync of specific orders of an account.
type OrderSyncer interface {
	EnqueueOrderSync(ctx context.Context, accountID string, orderIDs ...string) error
}

type handlerFunc func(ctx context.Context, env *Envelope) error

// Dispatcher validates inbound notifications and routes them by event type.
type Dispatcher struct {
	creds    Credentials
	store    Store
	closer   ItemCloser
	orders   OrderSyncer
	guard    ReplayGuard
	log      *slog.Logger
	now      func() time.Time
	window   time.Duration
	handlers map[EventType]handlerFunc
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithNowFunc overrides the clock used for the freshness check.
func WithNowFunc(f func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = f
	}
}

// WithWindow sets how old a notification may be.
func WithWindow(w time.Duration) Option {
	return func(d *Dispatcher) {
		if w > 0 {
			d.window = w
		}
	}
}

// WithReplayGuard drops redeliveries of notifications that were already
// recorded.
func WithReplayGuard(g ReplayGuard) Option {
	return func(d *Dispatcher) {
		d.guard = g
	}
}

// NewDispatcher creates a Dispatcher with the built-in handler table.
func NewDispatcher(creds Credentials, st Store, closer ItemCloser, orders OrderSyncer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		creds:  creds,
		store:  st,
		closer: closer,
		orders: orders,
		log:    slog.Default(),
		now:    time.Now,
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.handlers = map[EventType]handlerFunc{
		EventItemClosed:              d.itemClosed,
		EventItemSuspended:           d.itemClosed,
		EventItemUnsold:              d.itemClosed,
		EventItemRevised:             d.itemRevised,
		EventFixedPriceTransaction:   d.itemSold,
		EventItemSold:                d.itemSold,
		EventAuctionCheckoutComplete: d.itemSold,
	}
	return d
}

// Handles reports whether an event type has a handler.
func (d *Dispatcher) Handles(t EventType) bool {
	_, ok := d.handlers[t]
	return ok
}

// Handle processes one raw notification. It returns ErrParse, ErrSignature
// or ErrStale for notifications that must be refused; once a notification
// is authentic every handler outcome is recorded and nil is returned.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) error {
	env, err := Parse(raw)
	if err != nil {
		metrics.NotificationRejectionsTotal.WithLabelValues("parse").Inc()
		return err
	}
	if err := Verify(env, d.creds, d.now(), d.window); err != nil {
		reason := "signature"
		if errors.Is(err, ErrStale) {
			reason = "stale"
		}
		metrics.NotificationRejectionsTotal.WithLabelValues(reason).Inc()
		d.log.WarnContext(ctx, "rejected notification", "event", env.EventType, "reason", reason, "error", err)
		return err
	}

	key, guarded := ReplayKey(raw), false
	if d.guard != nil {
		first, err := d.guard.FirstSeen(ctx, key, d.window)
		switch {
		case err != nil:
			d.log.WarnContext(ctx, "replay guard unavailable", "error", err)
		case !first:
			metrics.NotificationsTotal.WithLabelValues(string(env.EventType), "duplicate").Inc()
			d.log.InfoContext(ctx, "duplicate notification", "event", env.EventType, "timestamp", env.RawTimestamp)
			return nil
		default:
			guarded = true
		}
	}

	n := &domain.Notification{
		EventType: string(env.EventType),
		Timestamp: env.Timestamp,
		Signature: env.Signature,
		Payload:   env.Body,
		Status:    domain.NotificationUnhandled,
	}
	if err := d.store.InsertNotification(ctx, n); err != nil {
		// eBay redelivers after a 5xx; the redelivery must not look replayed.
		if guarded {
			if ferr := d.guard.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				d.log.ErrorContext(ctx, "releasing replay key", "event", env.EventType, "error", ferr)
			}
		}
		return fmt.Errorf("recording notification: %w", err)
	}

	d.dispatch(ctx, n, env)
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, n *domain.Notification, env *Envelope) {
	h, ok := d.handlers[env.EventType]
	if !ok {
		metrics.NotificationsTotal.WithLabelValues(string(env.EventType), string(domain.NotificationUnhandled)).Inc()
		d.log.InfoContext(ctx, "no handler for notification", "event", env.EventType, "notification_id", n.ID)
		return
	}

	status, details := domain.NotificationHandled, json.RawMessage(nil)
	if err := d.run(ctx, h, env); err != nil {
		status = domain.NotificationFailed
		details, _ = json.Marshal(map[string]string{"error": err.Error()})
		d.log.ErrorContext(ctx, "notification handler failed",
			"event", env.EventType,
			"notification_id", n.ID,
			"error", err,
		)
	}
	metrics.NotificationsTotal.WithLabelValues(string(env.EventType), string(status)).Inc()

	if err := d.store.UpdateNotificationStatus(ctx, n.ID, status, details); err != nil {
		d.log.ErrorContext(ctx, "recording notification outcome", "notification_id", n.ID, "error", err)
	}
}

// run contains handler panics as failures.
func (d *Dispatcher) run(ctx context.Context, h handlerFunc, env *Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, env)
}

func (d *Dispatcher) itemClosed(ctx context.Context, env *Envelope) error {
	if env.ItemID == "" {
		return fmt.Errorf("%s without item id", env.EventType)
	}
	return d.closer.MarkClosed(ctx, env.ItemID)
}

func (d *Dispatcher) itemRevised(ctx context.Context, env *Envelope) error {
	d.log.DebugContext(ctx, "item revised on eBay", "ebay_item_id", env.ItemID)
	return nil
}

func (d *Dispatcher) itemSold(ctx context.Context, env *Envelope) error {
	if env.OrderID == "" {
		return fmt.Errorf("%s without order id", env.EventType)
	}
	acc, err := d.store.GetAccountByEbayUserID(ctx, env.RecipientUserID)
	if err != nil {
		return fmt.Errorf("resolving seller %q: %w", env.RecipientUserID, err)
	}
	return d.orders.EnqueueOrderSync(ctx, acc.ID, env.OrderID)
}
