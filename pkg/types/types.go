// Package domain defines the core business types for the eBay connector.
package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PublishingStatus is the lifecycle state of a Listing.
type PublishingStatus string

// Publishing status constants.
const (
	StatusDraft       PublishingStatus = "draft"
	StatusInProgress  PublishingStatus = "in_progress"
	StatusPublished   PublishingStatus = "published"
	StatusFailed      PublishingStatus = "failed"
	StatusUnpublished PublishingStatus = "unpublished"
)

// CanSubmit reports whether a listing in this state may be dispatched for publishing.
func (s PublishingStatus) CanSubmit() bool {
	return s == StatusDraft || s == StatusFailed
}

// Reusable reports whether Prepare should hand back an existing listing in
// this state instead of creating a new draft.
func (s PublishingStatus) Reusable() bool {
	return s != StatusUnpublished
}

// Severity values used in StatusDetail.
const (
	SeverityError      = "Error"
	SeverityWarning    = "Warning"
	SeverityFatalError = "FatalError"
)

// FatalErrorCode is the code recorded for failures that did not come from eBay.
const FatalErrorCode = "-1"

// StatusDetail is one structured error entry attached to a listing or update.
type StatusDetail struct {
	Code           string `json:"code"`
	Classification string `json:"classification"`
	Severity       string `json:"severity"`
	ShortMessage   string `json:"short_message"`
	LongMessage    string `json:"long_message"`
}

// FatalStatusDetail builds the generic entry recorded for unexpected failures.
func FatalStatusDetail(err error) StatusDetail {
	long := "An unexpected error occurred while talking to eBay."
	if err != nil {
		long = fmt.Sprintf("%s (%s)", long, err.Error())
	}
	return StatusDetail{
		Code:           FatalErrorCode,
		Classification: "SystemError",
		Severity:       SeverityFatalError,
		ShortMessage:   "Fatal error",
		LongMessage:    long,
	}
}

// NameValue is a single item specific (attribute) pair.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ShippingConfig selects one shipping service for a listing.
type ShippingConfig struct {
	ServiceCode    string          `json:"service_code"`
	Cost           decimal.Decimal `json:"cost"`
	AdditionalCost decimal.Decimal `json:"additional_cost"`
	International  bool            `json:"international,omitempty"`
}

// ReturnPolicy mirrors eBay's return policy block.
type ReturnPolicy struct {
	ReturnsAccepted bool   `json:"returns_accepted"`
	ReturnsWithin   string `json:"returns_within,omitempty"`
	ShippingCostBy  string `json:"shipping_cost_paid_by,omitempty"`
	RefundOption    string `json:"refund_option,omitempty"`
	Description     string `json:"description,omitempty"`
}

// Listing is the eBay-side representation of one core product (an EbayItem).
// It is a snapshot of the product taken at preparation time.
type Listing struct {
	ID            string           `json:"id"`
	AccountID     string           `json:"account_id"`
	CoreProductID int64            `json:"core_product_id"`
	EbayItemID    *string          `json:"ebay_item_id,omitempty"`
	SKU           string           `json:"sku"`
	Status        PublishingStatus `json:"publishing_status"`
	StatusDetails []StatusDetail   `json:"publishing_status_details"`

	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
	GrossPrice  decimal.Decimal `json:"gross_price"`
	Currency    string          `json:"currency"`
	Quantity    int             `json:"quantity"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	CategoryID  string          `json:"category_id,omitempty"`

	Specifics       []NameValue      `json:"specifics,omitempty"`
	Shipping        []ShippingConfig `json:"shipping,omitempty"`
	ReturnPolicy    *ReturnPolicy    `json:"return_policy,omitempty"`
	ClickAndCollect bool             `json:"click_and_collect"`
	Variations      []Variation      `json:"variations,omitempty"`

	PublishedAt   *time.Time `json:"published_at,omitempty"`
	UnpublishedAt *time.Time `json:"unpublished_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasVariations reports whether the listing is a multi-SKU listing.
func (l *Listing) HasVariations() bool {
	return len(l.Variations) > 0
}

// AppendStatusDetails adds entries to the listing's status details.
func (l *Listing) AppendStatusDetails(details ...StatusDetail) {
	l.StatusDetails = append(l.StatusDetails, details...)
}

// Variation is one SKU inside a multi-variation listing.
type Variation struct {
	ID            string          `json:"id"`
	CoreProductID int64           `json:"core_product_id"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Specifics     []NameValue     `json:"specifics"`
}

// UpdateStatus is the lifecycle state of an ItemUpdate.
type UpdateStatus string

// Update status constants.
const (
	UpdateDraft      UpdateStatus = "draft"
	UpdatePending    UpdateStatus = "pending"
	UpdateInProgress UpdateStatus = "in_progress"
	UpdateSucceeded  UpdateStatus = "succeeded"
	UpdateFailed     UpdateStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s UpdateStatus) Terminal() bool {
	return s == UpdateSucceeded || s == UpdateFailed
}

// ItemUpdate is one price/quantity mutation attempt against a published listing.
type ItemUpdate struct {
	ID               string            `json:"id"`
	ListingID        string            `json:"listing_id"`
	Status           UpdateStatus      `json:"status"`
	Price            *decimal.Decimal  `json:"price,omitempty"`
	Quantity         *int              `json:"quantity,omitempty"`
	StatusDetails    []StatusDetail    `json:"status_details"`
	VariationUpdates []VariationUpdate `json:"variation_updates,omitempty"`
	Attempts         []APIAttempt      `json:"attempts,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// VariationUpdate tracks the update of a single variation inside an ItemUpdate.
type VariationUpdate struct {
	VariationID string           `json:"variation_id"`
	SKU         string           `json:"sku"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Status      UpdateStatus     `json:"status"`
}

// AttemptType classifies an APIAttempt.
type AttemptType string

// Attempt type constants.
const (
	AttemptPublish   AttemptType = "publish"
	AttemptUnpublish AttemptType = "unpublish"
	AttemptUpdate    AttemptType = "update"
)

// APIAttempt is the audit record of one outbound eBay call.
type APIAttempt struct {
	ID        string      `json:"id"`
	ListingID string      `json:"listing_id"`
	UpdateID  *string     `json:"update_id,omitempty"`
	Type      AttemptType `json:"type"`
	Success   bool        `json:"success"`
	Request   string      `json:"request,omitempty"`
	Response  string      `json:"response,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Product is the core platform's view of a sellable product, as returned by
// the core API. Listings are prepared from it.
type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Images      []string         `json:"images"`
	GrossPrice  decimal.Decimal  `json:"gross_price"`
	Quantity    int              `json:"quantity"`
	TaxRate     decimal.Decimal  `json:"tax_rate"`
	Attributes  []NameValue      `json:"attributes"`
	Variants    []ProductVariant `json:"variants"`
	ModifiedAt  time.Time        `json:"modified_at"`
}

// ProductVariant is one SKU of a multi-variant core product.
type ProductVariant struct {
	ID         int64           `json:"id"`
	GrossPrice decimal.Decimal `json:"gross_price"`
	Quantity   int             `json:"quantity"`
	Attributes []NameValue     `json:"attributes"`
}

// ListingConfig carries the eBay-specific settings a caller supplies when
// preparing or updating a listing.
type ListingConfig struct {
	CategoryID      string           `json:"category_id"`
	Shipping        []ShippingConfig `json:"shipping,omitempty"`
	ClickAndCollect bool             `json:"click_and_collect"`
	Specifics       []NameValue      `json:"specifics,omitempty"`
}

// JobRun records a single execution of a scheduled job.
type JobRun struct {
	ID           string     `json:"id"                      db:"id"`
	JobName      string     `json:"job_name"                db:"job_name"`
	StartedAt    time.Time  `json:"started_at"              db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	Status       string     `json:"status"                  db:"status"`
	ErrorText    string     `json:"error_text,omitempty"    db:"error_text"`
	RowsAffected *int       `json:"rows_affected,omitempty" db:"rows_affected"`
}

// ContainsSKU reports whether any variation of the listing carries the SKU.
func (l *Listing) ContainsSKU(sku string) bool {
	return sku == l.SKU || slices.ContainsFunc(l.Variations, func(v Variation) bool {
		return v.SKU == sku
	})
}
