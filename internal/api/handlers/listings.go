package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ListingStore defines the store methods required by the listings handler.
type ListingStore interface {
	ListListings(ctx context.Context, q *store.ListingQuery) ([]domain.Listing, int, error)
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	ListAPIAttempts(ctx context.Context, listingID string, limit int) ([]domain.APIAttempt, error)
}

// ListingsHandler handles listing query endpoints. Callers only see the
// listings of their own account.
type ListingsHandler struct {
	store ListingStore
}

// NewListingsHandler creates a new ListingsHandler.
func NewListingsHandler(s ListingStore) *ListingsHandler {
	return &ListingsHandler{store: s}
}

// --- Input/Output types ---

// ListListingsInput is the input for listing listings with optional filters.
type ListListingsInput struct {
	Status    string `query:"status"     doc:"Filter by publishing status"    enum:"draft,in_progress,published,failed,unpublished,"`
	ProductID int64  `query:"product_id" doc:"Filter by core product id"`
	Limit     int    `query:"limit"      doc:"Number of results (default 50)"                                                minimum:"1" maximum:"1000"`
	Offset    int    `query:"offset"     doc:"Pagination offset"                                                             minimum:"0"`
	OrderBy   string `query:"order_by"   doc:"Sort field"                     enum:"created_at,updated_at,published_at,"`
}

// ListListingsOutput is the response for listing listings.
type ListListingsOutput struct {
	Body struct {
		Listings []domain.Listing `json:"listings"`
		Total    int              `json:"total"`
		Limit    int              `json:"limit"`
		Offset   int              `json:"offset"`
	}
}

// GetListingInput is the input for getting a single listing.
type GetListingInput struct {
	ID string `path:"id" doc:"Listing UUID"`
}

// GetListingOutput is the response for getting a single listing.
type GetListingOutput struct {
	Body domain.Listing
}

// ListAttemptsOutput is the eBay call audit trail of a listing.
type ListAttemptsOutput struct {
	Body []domain.APIAttempt
}

const defaultAttemptLimit = 50

// --- Handlers ---

// ListListings returns the account's listings with optional filters.
func (h *ListingsHandler) ListListings(
	ctx context.Context,
	input *ListListingsInput,
) (*ListListingsOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}

	q := &store.ListingQuery{
		AccountID: &acc.ID,
		Offset:    input.Offset,
		OrderBy:   input.OrderBy,
	}

	if input.Status != "" {
		st := domain.PublishingStatus(input.Status)
		q.Status = &st
	}

	if input.ProductID != 0 {
		q.CoreProductID = &input.ProductID
	}

	if input.Limit != 0 {
		q.Limit = input.Limit
	}

	listings, total, err := h.store.ListListings(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing query failed: " + err.Error())
	}

	if listings == nil {
		listings = []domain.Listing{}
	}

	resp := &ListListingsOutput{}
	resp.Body.Listings = listings
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset

	return resp, nil
}

// GetListing returns a single listing by ID.
func (h *ListingsHandler) GetListing(
	ctx context.Context,
	input *GetListingInput,
) (*GetListingOutput, error) {
	l, err := h.ownListing(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &GetListingOutput{Body: *l}, nil
}

// ListAttempts returns the eBay calls made for a listing, newest first.
func (h *ListingsHandler) ListAttempts(
	ctx context.Context,
	input *GetListingInput,
) (*ListAttemptsOutput, error) {
	if _, err := h.ownListing(ctx, input.ID); err != nil {
		return nil, err
	}

	attempts, err := h.store.ListAPIAttempts(ctx, input.ID, defaultAttemptLimit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing attempts failed: " + err.Error())
	}
	if attempts == nil {
		attempts = []domain.APIAttempt{}
	}
	return &ListAttemptsOutput{Body: attempts}, nil
}

func (h *ListingsHandler) ownListing(ctx context.Context, id string) (*domain.Listing, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}

	l, err := h.store.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("listing not found")
		}
		return nil, huma.Error500InternalServerError("loading listing failed: " + err.Error())
	}
	if l.AccountID != acc.ID {
		return nil, huma.Error404NotFound("listing not found")
	}
	return l, nil
}

// RegisterListingRoutes registers listing endpoints with the Huma API.
func RegisterListingRoutes(api huma.API, h *ListingsHandler, mw ...func(huma.Context, func(huma.Context))) {
	huma.Register(api, huma.Operation{
		OperationID: "list-listings",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings",
		Summary:     "List listings",
		Description: "Returns the account's listings with optional filters for status, product and pagination.",
		Tags:        []string{"listings"},
		Middlewares: mw,
		Errors:      []int{http.StatusUnauthorized},
	}, h.ListListings)

	huma.Register(api, huma.Operation{
		OperationID: "get-listing",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings/{id}",
		Summary:     "Get a listing by ID",
		Description: "Returns a single listing including eBay status details.",
		Tags:        []string{"listings"},
		Middlewares: mw,
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, h.GetListing)

	huma.Register(api, huma.Operation{
		OperationID: "list-listing-attempts",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings/{id}/attempts",
		Summary:     "List eBay calls of a listing",
		Description: "Returns the recorded eBay API calls made for a listing (newest first).",
		Tags:        []string{"listings"},
		Middlewares: mw,
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, h.ListAttempts)
}
