package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyncDomain names one watermark-tracked synchronisation feed.
type SyncDomain string

// Sync domain constants.
const (
	SyncProducts SyncDomain = "products"
	SyncOrders   SyncDomain = "orders"
	SyncReturns  SyncDomain = "returns"
)

// Account is one seller account connected to eBay.
type Account struct {
	ID              string           `json:"id"`
	Username        string           `json:"username"`
	CoreAccountID   string           `json:"core_account_id"`
	EbayUserID      string           `json:"ebay_user_id,omitempty"`
	Country         string           `json:"country"`
	SiteID          int              `json:"site_id"`
	Currency        string           `json:"currency"`
	Token           *Token           `json:"token,omitempty"`
	Location        *Location        `json:"location,omitempty"`
	ReturnPolicy    *ReturnPolicy    `json:"return_policy,omitempty"`
	Shipping        []ShippingConfig `json:"shipping,omitempty"`
	ClickAndCollect bool             `json:"click_and_collect"`

	LastProductsSync *time.Time `json:"last_products_sync,omitempty"`
	LastOrdersSync   *time.Time `json:"last_orders_sync,omitempty"`
	LastReturnsSync  *time.Time `json:"last_returns_sync,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Watermark returns the checkpoint for a sync domain, falling back to the
// account creation time when the domain has never completed a run.
func (a *Account) Watermark(d SyncDomain) time.Time {
	var w *time.Time
	switch d {
	case SyncProducts:
		w = a.LastProductsSync
	case SyncOrders:
		w = a.LastOrdersSync
	case SyncReturns:
		w = a.LastReturnsSync
	}
	if w == nil {
		return a.CreatedAt
	}
	return *w
}

// HasValidToken reports whether the account can authenticate against eBay at now.
func (a *Account) HasValidToken(now time.Time) bool {
	return a.Token != nil && a.Token.Value != "" && !a.Token.Expired(now)
}

// Token is the immutable eBay auth token of an account. The marketplace is
// chosen per call, never stored on the token.
type Token struct {
	Value     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is no longer usable at now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Location is the seller's in-store pickup location registered with eBay.
type Location struct {
	LocationID   string          `json:"location_id"`
	Name         string          `json:"name"`
	Address1     string          `json:"address1"`
	Address2     string          `json:"address2,omitempty"`
	City         string          `json:"city"`
	Region       string          `json:"region,omitempty"`
	PostalCode   string          `json:"postal_code"`
	Country      string          `json:"country"`
	Latitude     decimal.Decimal `json:"latitude"`
	Longitude    decimal.Decimal `json:"longitude"`
	Phone        string          `json:"phone,omitempty"`
	OpeningHours string          `json:"opening_hours,omitempty"`
	UTCOffset    string          `json:"utc_offset,omitempty"`
}

// AccountSettings are the core platform's settings for an account.
type AccountSettings struct {
	ClickAndCollectEnabled bool   `json:"click_and_collect_enabled"`
	Currency               string `json:"currency"`
}
