package domain

import (
	"encoding/json"
	"time"
)

// Category is one node of eBay's category tree for a country.
type Category struct {
	ID         string `json:"id"`
	Country    string `json:"country"`
	ParentID   string `json:"parent_id,omitempty"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	IsLeaf     bool   `json:"is_leaf"`
	Variations bool   `json:"variations_enabled"`
}

// Specific is an attribute definition attached to a leaf category.
type Specific struct {
	CategoryID    string   `json:"category_id"`
	Country       string   `json:"country"`
	Name          string   `json:"name"`
	Required      bool     `json:"required"`
	SelectionOnly bool     `json:"selection_only"`
	MaxValues     int      `json:"max_values"`
	Values        []string `json:"values,omitempty"`
}

// ShippingService is one eBay shipping service available in a country.
type ShippingService struct {
	Code          string    `json:"code"`
	Country       string    `json:"country"`
	Description   string    `json:"description"`
	Carrier       string    `json:"carrier,omitempty"`
	International bool      `json:"international"`
	Valid         bool      `json:"valid"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NotificationStatus is the processing state of an inbound eBay notification.
type NotificationStatus string

// Notification status constants.
const (
	NotificationUnhandled NotificationStatus = "unhandled"
	NotificationHandled   NotificationStatus = "handled"
	NotificationFailed    NotificationStatus = "failed"
)

// Notification is the audit record of an inbound eBay platform notification.
type Notification struct {
	ID        string             `json:"id"`
	EventType string             `json:"event_type"`
	Timestamp time.Time          `json:"timestamp"`
	Signature string             `json:"-"`
	Payload   string             `json:"payload"`
	Status    NotificationStatus `json:"status"`
	Details   json.RawMessage    `json:"details,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
