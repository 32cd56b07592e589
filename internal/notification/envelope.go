// Package notification receives eBay platform notifications: it parses the
// SOAP envelope, checks the signature and freshness, records the raw event
// and routes it to the handler registered for its event type.
package notification

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
)

// Pre-dispatch failures. Parse errors map to 400, the others to 401.
var (
	ErrParse     = errors.New("malformed notification")
	ErrSignature = errors.New("invalid notification signature")
	ErrStale     = errors.New("stale notification")
)

// EventType is the NotificationEventName of a notification.
type EventType string

// Event types with a registered handler.
const (
	EventItemClosed              EventType = "ItemClosed"
	EventItemSuspended           EventType = "ItemSuspended"
	EventItemUnsold              EventType = "ItemUnsold"
	EventItemRevised             EventType = "ItemRevised"
	EventFixedPriceTransaction   EventType = "FixedPriceTransaction"
	EventItemSold                EventType = "ItemSold"
	EventAuctionCheckoutComplete EventType = "AuctionCheckoutComplete"
)

// Envelope is a parsed notification.
type Envelope struct {
	EventType       EventType
	Timestamp       time.Time
	RawTimestamp    string
	Signature       string
	ItemID          string
	OrderID         string
	RecipientUserID string
	Body            string
}

// Parse decodes a raw notification document.
func Parse(raw []byte) (*Envelope, error) {
	var doc wire.NotificationEnvelope
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	p := doc.Body.Payload
	if p.NotificationEventName == "" {
		return nil, fmt.Errorf("%w: missing NotificationEventName", ErrParse)
	}
	sig := strings.TrimSpace(doc.Header.RequesterCredentials.NotificationSignature)
	if sig == "" {
		return nil, fmt.Errorf("%w: missing NotificationSignature", ErrParse)
	}
	ts, err := wire.ParseTime(p.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return &Envelope{
		EventType:       EventType(p.NotificationEventName),
		Timestamp:       ts,
		RawTimestamp:    strings.TrimSpace(p.Timestamp),
		Signature:       sig,
		ItemID:          p.EventItemID(),
		OrderID:         p.EventOrderID(),
		RecipientUserID: p.RecipientUserID,
		Body:            string(raw),
	}, nil
}
