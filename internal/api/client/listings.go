package client

import (
	"context"
	"net/url"
	"strconv"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ListingsResponse wraps a paginated listings response.
type ListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListListingsParams defines query parameters for listing queries.
type ListListingsParams struct {
	Status    string
	ProductID int64
	Limit     int
	Offset    int
	OrderBy   string
}

// ListListings returns the caller's listings matching the given parameters.
func (c *Client) ListListings(ctx context.Context, params *ListListingsParams) (*ListingsResponse, error) {
	q := map[string]string{}
	if params.Status != "" {
		q["status"] = params.Status
	}
	if params.ProductID > 0 {
		q["product_id"] = strconv.FormatInt(params.ProductID, 10)
	}
	if params.Limit > 0 {
		q["limit"] = strconv.Itoa(params.Limit)
	}
	if params.Offset > 0 {
		q["offset"] = strconv.Itoa(params.Offset)
	}
	if params.OrderBy != "" {
		q["order_by"] = params.OrderBy
	}

	var resp ListingsResponse
	if err := c.get(ctx, "/api/v1/listings", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetListing returns a single listing by ID.
func (c *Client) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := c.get(ctx, "/api/v1/listings/"+url.PathEscape(id), nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListAttempts returns the recorded eBay calls of a listing.
func (c *Client) ListAttempts(ctx context.Context, id string) ([]domain.APIAttempt, error) {
	var attempts []domain.APIAttempt
	if err := c.get(ctx, "/api/v1/listings/"+url.PathEscape(id)+"/attempts", nil, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}
