package client

import (
	"context"
	"strconv"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// NotificationsResponse is a page of the notification audit log.
type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int                   `json:"total"`
}

// ListNotifications returns received eBay notifications, newest first.
func (c *Client) ListNotifications(
	ctx context.Context,
	status, eventType string,
	limit int,
) (*NotificationsResponse, error) {
	q := map[string]string{}
	if status != "" {
		q["status"] = status
	}
	if eventType != "" {
		q["event_type"] = eventType
	}
	if limit > 0 {
		q["limit"] = strconv.Itoa(limit)
	}

	var resp NotificationsResponse
	if err := c.get(ctx, "/api/v1/notifications", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
