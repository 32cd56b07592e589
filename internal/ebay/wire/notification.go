package wire

import "encoding/xml"

// NotificationEnvelope is the SOAP document eBay posts for platform
// notifications.
type NotificationEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Header  struct {
		RequesterCredentials struct {
			NotificationSignature string `xml:"NotificationSignature"`
		} `xml:"RequesterCredentials"`
	} `xml:"Header"`
	Body struct {
		Payload NotificationPayload `xml:",any"`
	} `xml:"Body"`
}

// NotificationPayload is the response-shaped body of a notification.
type NotificationPayload struct {
	XMLName               xml.Name
	Timestamp             string `xml:"Timestamp"`
	Ack                   string `xml:"Ack"`
	NotificationEventName string `xml:"NotificationEventName"`
	RecipientUserID       string `xml:"RecipientUserID"`
	EIASToken             string `xml:"EIASToken"`
	ItemID                string `xml:"ItemID"`
	Item                  *struct {
		ItemID string `xml:"ItemID"`
		SKU    string `xml:"SKU"`
	} `xml:"Item"`
	OrderID      string  `xml:"OrderID"`
	Orders       []Order `xml:"OrderArray>Order"`
	Transactions []struct {
		TransactionID string `xml:"TransactionID"`
		OrderID       string `xml:"ContainingOrder>OrderID"`
	} `xml:"TransactionArray>Transaction"`
	InnerXML string `xml:",innerxml"`
}

// EventItemID returns the item id referenced by the notification.
func (p *NotificationPayload) EventItemID() string {
	if p.Item != nil && p.Item.ItemID != "" {
		return p.Item.ItemID
	}
	return p.ItemID
}

// EventOrderID returns the order id referenced by the notification.
func (p *NotificationPayload) EventOrderID() string {
	if p.OrderID != "" {
		return p.OrderID
	}
	for _, o := range p.Orders {
		if o.OrderID != "" {
			return o.OrderID
		}
	}
	for _, t := range p.Transactions {
		if t.OrderID != "" {
			return t.OrderID
		}
	}
	return ""
}
