package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/notification"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// NotificationReceiver processes one raw platform notification.
type NotificationReceiver interface {
	Handle(ctx context.Context, raw []byte) error
}

// NotificationLister queries the notification audit log.
type NotificationLister interface {
	ListNotifications(ctx context.Context, q *store.NotificationQuery) ([]domain.Notification, int, error)
}

// NotificationsHandler receives eBay platform notifications.
type NotificationsHandler struct {
	dispatcher NotificationReceiver
	store      NotificationLister
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(d NotificationReceiver, s NotificationLister) *NotificationsHandler {
	return &NotificationsHandler{dispatcher: d, store: s}
}

// ReceiveNotificationInput is the raw SOAP envelope posted by eBay.
type ReceiveNotificationInput struct {
	RawBody []byte `contentType:"text/xml"`
}

// ListNotificationsInput filters the audit log.
type ListNotificationsInput struct {
	Status    string `query:"status"     doc:"Filter by dispatch status" enum:"unhandled,handled,failed,"`
	EventType string `query:"event_type" doc:"Filter by eBay event name"`
	Limit     int    `query:"limit"      doc:"Number of results (default 50)" minimum:"1" maximum:"1000"`
	Offset    int    `query:"offset"     doc:"Pagination offset"              minimum:"0"`
}

// ListNotificationsOutput is a page of the audit log.
type ListNotificationsOutput struct {
	Body struct {
		Notifications []domain.Notification `json:"notifications"`
		Total         int                   `json:"total"`
	}
}

// Receive verifies and dispatches a notification. Once the signature is
// valid the answer is 200 whatever the handler does, so eBay does not
// redeliver.
func (h *NotificationsHandler) Receive(ctx context.Context, input *ReceiveNotificationInput) (*struct{}, error) {
	err := h.dispatcher.Handle(ctx, input.RawBody)
	switch {
	case err == nil:
		return &struct{}{}, nil
	case errors.Is(err, notification.ErrParse):
		return nil, huma.Error400BadRequest(err.Error())
	case errors.Is(err, notification.ErrSignature), errors.Is(err, notification.ErrStale):
		return nil, huma.Error401Unauthorized(err.Error())
	default:
		return nil, huma.Error500InternalServerError("storing notification failed")
	}
}

// List returns the notification audit log, newest first.
func (h *NotificationsHandler) List(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
	q := &store.NotificationQuery{Limit: input.Limit, Offset: input.Offset}
	if input.Status != "" {
		st := domain.NotificationStatus(input.Status)
		q.Status = &st
	}
	if input.EventType != "" {
		q.EventType = &input.EventType
	}

	ns, total, err := h.store.ListNotifications(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing notifications failed: " + err.Error())
	}
	if ns == nil {
		ns = []domain.Notification{}
	}

	resp := &ListNotificationsOutput{}
	resp.Body.Notifications = ns
	resp.Body.Total = total
	return resp, nil
}

// RegisterNotificationRoutes registers the public eBay callback and the
// authenticated audit log.
func RegisterNotificationRoutes(api huma.API, h *NotificationsHandler, mw ...func(huma.Context, func(huma.Context))) {
	huma.Register(api, huma.Operation{
		OperationID:   "receive-notification",
		Method:        http.MethodPost,
		Path:          "/api/v1/notifications",
		Summary:       "Receive an eBay platform notification",
		Description:   "eBay callback. Answers 200 once the signature is valid and fresh.",
		Tags:          []string{"notifications"},
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, h.Receive)

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "List received notifications",
		Description: "Returns the notification audit log with dispatch outcomes.",
		Tags:        []string{"notifications"},
		Middlewares: mw,
		Errors:      []int{http.StatusUnauthorized},
	}, h.List)
}
