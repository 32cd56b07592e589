package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is an aggregate of independent flags. eBay and the core
// platform each get one so divergence between them can be detected.
type OrderStatus struct {
	IsPaid      bool `json:"is_paid"`
	IsShipped   bool `json:"is_shipped"`
	IsClosed    bool `json:"is_closed"`
	IsCanceled  bool `json:"is_canceled"`
	IsDelivered bool `json:"is_delivered"`
}

// Address is a postal address on an order.
type Address struct {
	Name       string `json:"name"`
	Street1    string `json:"street1"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order mirrors an eBay order.
type Order struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	EbayOrderID     string          `json:"ebay_order_id"`
	CoreOrderID     *string         `json:"core_order_id,omitempty"`
	BuyerUserID     string          `json:"buyer_user_id"`
	BuyerEmail      string          `json:"buyer_email,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingService string          `json:"shipping_service,omitempty"`
	ShippingAddress Address         `json:"shipping_address"`
	Lines           []OrderLine     `json:"lines"`
	EbayStatus      OrderStatus     `json:"ebay_status"`
	CoreStatus      OrderStatus     `json:"core_status"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Carrier         string          `json:"carrier,omitempty"`
	CreatedTime     time.Time       `json:"created_time"`
	ModifiedTime    time.Time       `json:"modified_time"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderLine is one transaction of an order.
type OrderLine struct {
	ID            string          `json:"id"`
	EbayItemID    string          `json:"ebay_item_id"`
	TransactionID string          `json:"transaction_id"`
	SKU           string          `json:"sku"`
	Title         string          `json:"title"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

// PaymentMethodMapping maps eBay payment method codes onto core payment
// method codes. Several eBay codes may map to the same core code.
type PaymentMethodMapping map[string]string

// DefaultPaymentMethods is the mapping used when an account has no override.
var DefaultPaymentMethods = PaymentMethodMapping{
	"PayPal":            "paypal",
	"CreditCard":        "card",
	"CCAccepted":        "card",
	"AmEx":              "card",
	"VisaMC":            "card",
	"Discover":          "card",
	"CashOnPickup":      "cash",
	"MOCC":              "transfer",
	"MoneyXferAccepted": "transfer",
	"CustomCode":        "other",
}

// Resolve maps an eBay code, returning "other" for unknown codes.
func (m PaymentMethodMapping) Resolve(ebayCode string) string {
	if code, ok := m[ebayCode]; ok {
		return code
	}
	return "other"
}

// RefundType distinguishes full and partial refunds.
type RefundType string

// Refund type constants.
const (
	RefundFull    RefundType = "Full"
	RefundPartial RefundType = "Partial"
)

// Return mirrors a core-side return for an order.
type Return struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	CoreReturnID string          `json:"core_return_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	RefundType   RefundType      `json:"refund_type"`
	Note         string          `json:"note,omitempty"`
	// SyncedWithEbay only ever moves from false to true.
	SyncedWithEbay bool      `json:"synced_with_ebay"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
