package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-connector/internal/api/handlers"
	"github.com/donaldgifford/ebay-connector/internal/notification"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const soapEnvelope = `<?xml version="1.0"?><soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"></soapenv:Envelope>`

type fakeReceiver struct {
	err error
	got []byte
}

func (f *fakeReceiver) Handle(_ context.Context, raw []byte) error {
	f.got = raw
	return f.err
}

type fakeNotificationLister struct {
	items []domain.Notification
	lastQ *store.NotificationQuery
}

func (f *fakeNotificationLister) ListNotifications(
	_ context.Context,
	q *store.NotificationQuery,
) ([]domain.Notification, int, error) {
	f.lastQ = q
	return f.items, len(f.items), nil
}

func TestReceiveNotification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "dispatched", wantCode: http.StatusOK},
		{name: "unparseable", err: fmt.Errorf("%w: no body", notification.ErrParse), wantCode: http.StatusBadRequest},
		{name: "bad signature", err: notification.ErrSignature, wantCode: http.StatusUnauthorized},
		{name: "stale", err: fmt.Errorf("%w: 20m old", notification.ErrStale), wantCode: http.StatusUnauthorized},
		{name: "persist failure", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rcv := &fakeReceiver{err: tt.err}
			api, mw := newAuthedAPI(t, newFakeAccounts(alice()))
			handlers.RegisterNotificationRoutes(api, handlers.NewNotificationsHandler(rcv, &fakeNotificationLister{}), mw...)

			resp := api.Post("/api/v1/notifications", "Content-Type: text/xml", strings.NewReader(soapEnvelope))
			require.Equal(t, tt.wantCode, resp.Code, resp.Body.String())
			assert.Equal(t, soapEnvelope, string(rcv.got))
		})
	}
}

func TestListNotifications(t *testing.T) {
	t.Parallel()

	lister := &fakeNotificationLister{items: []domain.Notification{
		{ID: "n-1", EventType: "ItemSold", Status: domain.NotificationHandled},
	}}
	api, mw := newAuthedAPI(t, newFakeAccounts(alice()))
	handlers.RegisterNotificationRoutes(api, handlers.NewNotificationsHandler(&fakeReceiver{}, lister), mw...)

	resp := api.Get("/api/v1/notifications")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = api.Get("/api/v1/notifications?status=handled&event_type=ItemSold&limit=5", authHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out struct {
		Notifications []domain.Notification `json:"notifications"`
		Total         int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, "n-1", out.Notifications[0].ID)

	require.NotNil(t, lister.lastQ.Status)
	assert.Equal(t, domain.NotificationHandled, *lister.lastQ.Status)
	require.NotNil(t, lister.lastQ.EventType)
	assert.Equal(t, "ItemSold", *lister.lastQ.EventType)
	assert.Equal(t, 5, lister.lastQ.Limit)
}
