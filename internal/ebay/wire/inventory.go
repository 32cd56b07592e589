package wire

import (
	"encoding/json"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// InventoryNamespace is the namespace of the Inventory Management API used
// for in-store pickup.
const InventoryNamespace = "http://www.ebay.com/marketplace/selling/v1/services"

// Availability values of in-store inventory.
const (
	InStock    = "IN_STOCK"
	OutOfStock = "OUT_OF_STOCK"
)

// InventoryLocationRequest registers or updates a pickup store.
type InventoryLocationRequest struct {
	LocationID   string `xml:"LocationID"`
	Name         string `xml:"Name"`
	Address1     string `xml:"Address1"`
	Address2     string `xml:"Address2,omitempty"`
	City         string `xml:"City"`
	Region       string `xml:"Region,omitempty"`
	PostalCode   string `xml:"PostalCode"`
	Country      string `xml:"Country"`
	Latitude     string `xml:"Latitude"`
	Longitude    string `xml:"Longitude"`
	Phone        string `xml:"Phone,omitempty"`
	Hours        string `xml:"Hours,omitempty"`
	UTCOffset    string `xml:"UTCOffset,omitempty"`
	LocationType string `xml:"LocationType"`
}

// EncodeLocation builds the AddInventoryLocation payload. Coordinates are
// sent with six decimal places.
func EncodeLocation(l *domain.Location) InventoryLocationRequest {
	return InventoryLocationRequest{
		LocationID:   l.LocationID,
		Name:         l.Name,
		Address1:     l.Address1,
		Address2:     l.Address2,
		City:         l.City,
		Region:       l.Region,
		PostalCode:   l.PostalCode,
		Country:      l.Country,
		Latitude:     l.Latitude.StringFixed(6),
		Longitude:    l.Longitude.StringFixed(6),
		Phone:        l.Phone,
		Hours:        l.OpeningHours,
		UTCOffset:    l.UTCOffset,
		LocationType: "STORE",
	}
}

// InventoryLocationAvailability is the stock of one SKU at one location.
type InventoryLocationAvailability struct {
	LocationID   string `xml:"LocationID"`
	Availability string `xml:"Availability"`
	Quantity     int    `xml:"Quantity"`
}

// AddInventoryRequest publishes the pickup stock of one SKU.
type AddInventoryRequest struct {
	SKU       string                          `xml:"SKU"`
	Locations []InventoryLocationAvailability `xml:"Locations>Location"`
}

// EncodeInventory builds the AddInventory payload for sku at location.
func EncodeInventory(sku, locationID string, qty int) AddInventoryRequest {
	return AddInventoryRequest{
		SKU: sku,
		Locations: []InventoryLocationAvailability{{
			LocationID:   locationID,
			Availability: AvailabilityFor(qty),
			Quantity:     max(qty, 0),
		}},
	}
}

// DeleteInventoryRequest removes the pickup stock of one SKU.
type DeleteInventoryRequest struct {
	SKU        string `xml:"SKU"`
	LocationID string `xml:"LocationID,omitempty"`
	Confirm    bool   `xml:"Confirm"`
}

// InventoryResult is the body of every Inventory Management API response.
type InventoryResult struct {
	ResponseBase
}

// AvailabilityFor maps a quantity to an availability value.
func AvailabilityFor(qty int) string {
	if qty > 0 {
		return InStock
	}
	return OutOfStock
}

// AvailabilityRequest is one SKU of an eBay inventory sanity check.
type AvailabilityRequest struct {
	SKU          string `json:"sku"`
	LocationID   string `json:"locationId"`
	Quantity     int    `json:"quantity"`
	Availability string `json:"availability,omitempty"`
}

// AvailabilityCheck is the payload eBay posts to ask whether SKUs are still
// available. The list arrives as a bare object when it has one entry.
type AvailabilityCheck struct {
	Items List[AvailabilityRequest] `json:"availability"`
}

// DecodeAvailabilityCheck parses a sanity check payload.
func DecodeAvailabilityCheck(data []byte) (*AvailabilityCheck, error) {
	var c AvailabilityCheck
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
