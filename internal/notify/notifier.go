// Package notify defines the notification interface and implementations
// for operator alert delivery.
package notify

import (
	"context"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// AlertKind classifies an operator alert.
type AlertKind string

// Alert kinds.
const (
	KindPublishFailed   AlertKind = "publish_failed"
	KindTaskExhausted   AlertKind = "task_exhausted"
	KindSyncFailed      AlertKind = "sync_failed"
	KindHandlerFailed   AlertKind = "notification_failed"
	KindUnpublishFailed AlertKind = "unpublish_failed"
)

// AlertPayload contains the data needed to report a failure to operators.
type AlertPayload struct {
	Kind      AlertKind
	Title     string
	AccountID string
	ListingID string
	SKU       string
	EbayURL   string
	Error     string
	Details   []domain.StatusDetail
}

// Notifier defines the interface for sending operator alerts.
type Notifier interface {
	SendAlert(ctx context.Context, alert *AlertPayload) error
	SendBatchAlert(ctx context.Context, alerts []AlertPayload, source string) error
}
