package wire

import (
	"slices"

	"github.com/shopspring/decimal"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Static listing defaults merged into every item payload.
const (
	ListingTypeFixedPrice = "FixedPriceItem"
	DefaultDuration       = "GTC"
)

// NameValueList is one item specific. A single Value renders as a scalar.
type NameValueList struct {
	Name  string   `xml:"Name"`
	Value []string `xml:"Value"`
}

// NameValueListArray wraps a list of specifics.
type NameValueListArray struct {
	NameValueList []NameValueList `xml:"NameValueList"`
}

// CategoryRef references a category by id.
type CategoryRef struct {
	CategoryID string `xml:"CategoryID"`
}

// PictureDetails lists picture URLs.
type PictureDetails struct {
	PictureURL []string `xml:"PictureURL"`
}

// VATDetails carries the tax rate as a percentage.
type VATDetails struct {
	VATPercent string `xml:"VATPercent"`
}

// ShippingServiceOption is one domestic or international shipping option.
type ShippingServiceOption struct {
	ShippingService               string   `xml:"ShippingService"`
	ShippingServicePriority       int      `xml:"ShippingServicePriority"`
	ShippingServiceCost           *Amount  `xml:"ShippingServiceCost,omitempty"`
	ShippingServiceAdditionalCost *Amount  `xml:"ShippingServiceAdditionalCost,omitempty"`
	ShipToLocation                []string `xml:"ShipToLocation,omitempty"`
}

// ShippingDetails groups the shipping options of an item.
type ShippingDetails struct {
	ShippingType                       string                  `xml:"ShippingType,omitempty"`
	ShippingServiceOptions             []ShippingServiceOption `xml:"ShippingServiceOptions"`
	InternationalShippingServiceOption []ShippingServiceOption `xml:"InternationalShippingServiceOption,omitempty"`
}

// ReturnPolicy is the return policy block of an item.
type ReturnPolicy struct {
	ReturnsAcceptedOption    string `xml:"ReturnsAcceptedOption"`
	ReturnsWithinOption      string `xml:"ReturnsWithinOption,omitempty"`
	ShippingCostPaidByOption string `xml:"ShippingCostPaidByOption,omitempty"`
	RefundOption             string `xml:"RefundOption,omitempty"`
	Description              string `xml:"Description,omitempty"`
}

// PickupInStoreDetails enables click and collect.
type PickupInStoreDetails struct {
	EligibleForPickupInStore bool `xml:"EligibleForPickupInStore"`
}

// Variation is one SKU of a multi-variation item.
type Variation struct {
	SKU                string             `xml:"SKU"`
	StartPrice         *Amount            `xml:"StartPrice,omitempty"`
	Quantity           *int               `xml:"Quantity,omitempty"`
	VariationSpecifics NameValueListArray `xml:"VariationSpecifics"`
}

// Variations is the variation block of an item.
type Variations struct {
	VariationSpecificsSet *NameValueListArray `xml:"VariationSpecificsSet,omitempty"`
	Variation             []Variation         `xml:"Variation"`
}

// Item is the item payload of AddFixedPriceItem and ReviseFixedPriceItem.
// Unset optional fields are omitted from the document.
type Item struct {
	ItemID               string                `xml:"ItemID,omitempty"`
	SKU                  string                `xml:"SKU,omitempty"`
	Title                string                `xml:"Title,omitempty"`
	Description          string                `xml:"Description,omitempty"`
	PrimaryCategory      *CategoryRef          `xml:"PrimaryCategory,omitempty"`
	StartPrice           *Amount               `xml:"StartPrice,omitempty"`
	Quantity             *int                  `xml:"Quantity,omitempty"`
	Currency             string                `xml:"Currency,omitempty"`
	Country              string                `xml:"Country,omitempty"`
	Location             string                `xml:"Location,omitempty"`
	PostalCode           string                `xml:"PostalCode,omitempty"`
	ListingType          string                `xml:"ListingType,omitempty"`
	ListingDuration      string                `xml:"ListingDuration,omitempty"`
	DispatchTimeMax      *int                  `xml:"DispatchTimeMax,omitempty"`
	ConditionID          int                   `xml:"ConditionID,omitempty"`
	VATDetails           *VATDetails           `xml:"VATDetails,omitempty"`
	PictureDetails       *PictureDetails       `xml:"PictureDetails,omitempty"`
	ItemSpecifics        *NameValueListArray   `xml:"ItemSpecifics,omitempty"`
	ShippingDetails      *ShippingDetails      `xml:"ShippingDetails,omitempty"`
	ReturnPolicy         *ReturnPolicy         `xml:"ReturnPolicy,omitempty"`
	PickupInStoreDetails *PickupInStoreDetails `xml:"PickupInStoreDetails,omitempty"`
	Variations           *Variations           `xml:"Variations,omitempty"`
}

// ItemDefaults are the static values merged into every listing payload.
type ItemDefaults struct {
	Country         string
	Location        string
	PostalCode      string
	ListingDuration string
	DispatchDays    int
	ConditionID     int
	Images          *ImageRewriter
}

// EncodeItem builds the item payload for l. When l already has an eBay item
// id the payload is suitable for ReviseFixedPriceItem.
func EncodeItem(l *domain.Listing, d ItemDefaults) Item {
	duration := d.ListingDuration
	if duration == "" {
		duration = DefaultDuration
	}

	item := Item{
		Title:           l.Title,
		Description:     l.Description,
		Currency:        l.Currency,
		Country:         d.Country,
		Location:        d.Location,
		PostalCode:      d.PostalCode,
		ListingType:     ListingTypeFixedPrice,
		ListingDuration: duration,
		ConditionID:     d.ConditionID,
	}
	if l.EbayItemID != nil {
		item.ItemID = *l.EbayItemID
	}
	if d.DispatchDays > 0 {
		item.DispatchTimeMax = intPtr(d.DispatchDays)
	}
	if l.CategoryID != "" {
		item.PrimaryCategory = &CategoryRef{CategoryID: l.CategoryID}
	}
	if !l.TaxRate.IsZero() {
		item.VATDetails = &VATDetails{VATPercent: l.TaxRate.StringFixed(3)}
	}

	if len(l.ImageURLs) > 0 {
		pics := &PictureDetails{PictureURL: make([]string, 0, len(l.ImageURLs))}
		for _, u := range l.ImageURLs {
			pics.PictureURL = append(pics.PictureURL, d.Images.Rewrite(u))
		}
		item.PictureDetails = pics
	}

	if specifics := MergeNameValues(l.Specifics); len(specifics) > 0 {
		item.ItemSpecifics = &NameValueListArray{NameValueList: specifics}
	}

	item.ShippingDetails = EncodeShipping(l.Shipping, l.Currency)
	item.ReturnPolicy = EncodeReturnPolicy(l.ReturnPolicy)
	if l.ClickAndCollect {
		item.PickupInStoreDetails = &PickupInStoreDetails{EligibleForPickupInStore: true}
	}

	if l.HasVariations() {
		item.Variations = EncodeVariations(l.Variations, l.Currency)
	} else {
		item.SKU = l.SKU
		item.StartPrice = NewAmount(l.GrossPrice, l.Currency)
		item.Quantity = intPtr(l.Quantity)
	}

	return item
}

// EncodeVariations builds the variation block. The specifics set merges all
// variation attributes by name.
func EncodeVariations(vs []domain.Variation, currency string) *Variations {
	out := &Variations{Variation: make([]Variation, 0, len(vs))}

	sets := make([][]domain.NameValue, 0, len(vs))
	for _, v := range vs {
		sets = append(sets, v.Specifics)
		out.Variation = append(out.Variation, Variation{
			SKU:        v.SKU,
			StartPrice: NewAmount(v.Price, currency),
			Quantity:   intPtr(v.Quantity),
			VariationSpecifics: NameValueListArray{
				NameValueList: MergeNameValues(v.Specifics),
			},
		})
	}

	if merged := MergeNameValues(sets...); len(merged) > 0 {
		out.VariationSpecificsSet = &NameValueListArray{NameValueList: merged}
	}
	return out
}

// MergeNameValues merges specifics by name. Names keep first-seen order and
// each name's values form a set in first-seen order, so identical values
// across variations collapse to a single scalar.
func MergeNameValues(sets ...[]domain.NameValue) []NameValueList {
	var out []NameValueList
	index := make(map[string]int)

	for _, set := range sets {
		for _, nv := range set {
			i, ok := index[nv.Name]
			if !ok {
				index[nv.Name] = len(out)
				out = append(out, NameValueList{Name: nv.Name, Value: []string{nv.Value}})
				continue
			}
			if !slices.Contains(out[i].Value, nv.Value) {
				out[i].Value = append(out[i].Value, nv.Value)
			}
		}
	}
	return out
}

// EncodeShipping splits shipping configs into domestic and international
// options. Nil when no service is configured.
func EncodeShipping(configs []domain.ShippingConfig, currency string) *ShippingDetails {
	if len(configs) == 0 {
		return nil
	}

	details := &ShippingDetails{ShippingType: "Flat"}
	for _, c := range configs {
		opt := ShippingServiceOption{
			ShippingService:     c.ServiceCode,
			ShippingServiceCost: NewAmount(c.Cost, currency),
		}
		if !c.AdditionalCost.IsZero() {
			opt.ShippingServiceAdditionalCost = NewAmount(c.AdditionalCost, currency)
		}
		if c.International {
			opt.ShippingServicePriority = len(details.InternationalShippingServiceOption) + 1
			opt.ShipToLocation = []string{"Worldwide"}
			details.InternationalShippingServiceOption = append(details.InternationalShippingServiceOption, opt)
			continue
		}
		opt.ShippingServicePriority = len(details.ShippingServiceOptions) + 1
		details.ShippingServiceOptions = append(details.ShippingServiceOptions, opt)
	}
	return details
}

// EncodeReturnPolicy maps the domain return policy. Nil stays nil.
func EncodeReturnPolicy(p *domain.ReturnPolicy) *ReturnPolicy {
	if p == nil {
		return nil
	}
	out := &ReturnPolicy{ReturnsAcceptedOption: "ReturnsNotAccepted"}
	if !p.ReturnsAccepted {
		return out
	}
	out.ReturnsAcceptedOption = "ReturnsAccepted"
	out.ReturnsWithinOption = p.ReturnsWithin
	out.ShippingCostPaidByOption = p.ShippingCostBy
	out.RefundOption = p.RefundOption
	out.Description = p.Description
	return out
}

// AddItemResult is the body of AddFixedPriceItem and ReviseFixedPriceItem
// responses.
type AddItemResult struct {
	ResponseBase
	ItemID    string `xml:"ItemID"`
	SKU       string `xml:"SKU"`
	StartTime *Time  `xml:"StartTime"`
	EndTime   *Time  `xml:"EndTime"`
	Fees      []Fee  `xml:"Fees>Fee"`
}

// Fee is one listing fee.
type Fee struct {
	Name string  `xml:"Name"`
	Fee  *Amount `xml:"Fee"`
}

// AddFixedPriceItemRequest creates a listing.
type AddFixedPriceItemRequest struct {
	RequestBase
	Item Item `xml:"Item"`
}

// ReviseFixedPriceItemRequest revises an existing listing.
type ReviseFixedPriceItemRequest struct {
	RequestBase
	Item         Item     `xml:"Item"`
	DeletedField []string `xml:"DeletedField,omitempty"`
}

// EndFixedPriceItemRequest ends a listing.
type EndFixedPriceItemRequest struct {
	RequestBase
	ItemID       string `xml:"ItemID,omitempty"`
	SKU          string `xml:"SKU,omitempty"`
	EndingReason string `xml:"EndingReason"`
}

// EndItemResult is the body of an EndFixedPriceItem response.
type EndItemResult struct {
	ResponseBase
	EndTime *Time `xml:"EndTime"`
}

// InventoryStatus is one price/quantity change of ReviseInventoryStatus.
type InventoryStatus struct {
	ItemID     string  `xml:"ItemID,omitempty"`
	SKU        string  `xml:"SKU,omitempty"`
	StartPrice *Amount `xml:"StartPrice,omitempty"`
	Quantity   *int    `xml:"Quantity,omitempty"`
}

// ReviseInventoryStatusRequest changes price and quantity of up to four
// items or variations.
type ReviseInventoryStatusRequest struct {
	RequestBase
	InventoryStatus []InventoryStatus `xml:"InventoryStatus"`
}

// ReviseInventoryStatusResult is the body of a ReviseInventoryStatus response.
type ReviseInventoryStatusResult struct {
	ResponseBase
	InventoryStatus []InventoryStatus `xml:"InventoryStatus"`
}

// MaxInventoryStatusPerCall is eBay's limit for ReviseInventoryStatus.
const MaxInventoryStatusPerCall = 4

// EncodeInventoryStatus builds one ReviseInventoryStatus entry.
func EncodeInventoryStatus(itemID, sku string, price *decimal.Decimal, qty *int, currency string) InventoryStatus {
	st := InventoryStatus{ItemID: itemID, SKU: sku, Quantity: qty}
	if price != nil {
		st.StartPrice = NewAmount(*price, currency)
	}
	return st
}

func intPtr(v int) *int {
	return &v
}
