package client

import (
	"context"
	"fmt"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ShippingOption is one shipping service of a publish request. Costs are
// decimal strings.
type ShippingOption struct {
	ServiceCode    string `json:"service_code"`
	Cost           string `json:"cost"`
	AdditionalCost string `json:"additional_cost,omitempty"`
	International  bool   `json:"international,omitempty"`
}

// PublishOptions overrides the account defaults of a listing.
type PublishOptions struct {
	CategoryID string           `json:"category_id,omitempty"`
	Shipping   []ShippingOption `json:"shipping,omitempty"`
}

// ListingStatus is the publishing state returned after a submission.
type ListingStatus struct {
	ListingID string                  `json:"listing_id"`
	SKU       string                  `json:"sku"`
	Status    domain.PublishingStatus `json:"publishing_status"`
}

// Publish prepares and submits one core product.
func (c *Client) Publish(ctx context.Context, productID int64, opts PublishOptions) (*ListingStatus, error) {
	var st ListingStatus
	if err := c.post(ctx, fmt.Sprintf("/api/v1/products/%d/publish", productID), opts, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// PublishBatch submits several products with shared options. On
// validation failures the returned *APIError carries the messages per
// product id in Detail.
func (c *Client) PublishBatch(
	ctx context.Context,
	productIDs []int64,
	opts PublishOptions,
) (map[string]ListingStatus, error) {
	body := map[string]any{"product_ids": productIDs, "config": opts}
	var resp struct {
		Listings map[string]ListingStatus `json:"listings"`
	}
	if err := c.post(ctx, "/api/v1/products/publish", body, &resp); err != nil {
		return nil, err
	}
	return resp.Listings, nil
}

// Update refreshes an existing listing from the current product.
func (c *Client) Update(ctx context.Context, productID int64, opts PublishOptions) (*domain.Listing, error) {
	var l domain.Listing
	if err := c.put(ctx, fmt.Sprintf("/api/v1/products/%d", productID), opts, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Unpublish ends the product's active listing.
func (c *Client) Unpublish(ctx context.Context, productID int64) (*ListingStatus, error) {
	var st ListingStatus
	if err := c.post(ctx, fmt.Sprintf("/api/v1/products/%d/unpublish", productID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
