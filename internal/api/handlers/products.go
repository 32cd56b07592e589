package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/publish"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ProductSource loads products from the core platform.
type ProductSource interface {
	GetProduct(ctx context.Context, coreAccountID string, id int64) (*domain.Product, error)
}

// Publisher runs the listing lifecycle.
type Publisher interface {
	Prepare(ctx context.Context, acc *domain.Account, p *domain.Product, cfg domain.ListingConfig) (*domain.Listing, error)
	Refresh(ctx context.Context, acc *domain.Account, p *domain.Product, cfg domain.ListingConfig) (*domain.Listing, error)
	Submit(ctx context.Context, listingID string, acc *domain.Account) (publish.Result, error)
	SubmitMany(ctx context.Context, listingIDs []string, acc *domain.Account) (map[string]*domain.Listing, map[string]error)
	Unpublish(ctx context.Context, listingID string, acc *domain.Account) (*domain.Listing, error)
}

// ActiveListings finds the live listing of a product.
type ActiveListings interface {
	GetActiveListing(ctx context.Context, accountID string, coreProductID int64) (*domain.Listing, error)
}

// ProductsHandler publishes, updates and unpublishes core products on eBay.
type ProductsHandler struct {
	products  ProductSource
	publisher Publisher
	listings  ActiveListings
}

// NewProductsHandler creates a new ProductsHandler.
func NewProductsHandler(ps ProductSource, p Publisher, l ActiveListings) *ProductsHandler {
	return &ProductsHandler{products: ps, publisher: p, listings: l}
}

// --- Input/Output types ---

// ShippingBody selects one shipping service. Costs are decimal strings.
type ShippingBody struct {
	ServiceCode    string `json:"service_code"              doc:"eBay shipping service code" example:"DE_DHLPaket"`
	Cost           string `json:"cost"                      doc:"Shipping cost"              example:"4.90"`
	AdditionalCost string `json:"additional_cost,omitempty" doc:"Cost of each additional item"`
	International  bool   `json:"international,omitempty"`
}

// ListingConfigBody carries the eBay settings of a listing.
type ListingConfigBody struct {
	CategoryID      string             `json:"category_id,omitempty"       doc:"eBay leaf category id"`
	Shipping        []ShippingBody     `json:"shipping,omitempty"          doc:"Shipping services; the account's are used when empty"`
	ClickAndCollect bool               `json:"click_and_collect,omitempty" doc:"Offer in-store pickup"`
	Specifics       []domain.NameValue `json:"specifics,omitempty"         doc:"Item specifics overriding product attributes"`
}

func (b *ListingConfigBody) toDomain() (domain.ListingConfig, error) {
	cfg := domain.ListingConfig{
		CategoryID:      b.CategoryID,
		ClickAndCollect: b.ClickAndCollect,
		Specifics:       b.Specifics,
	}
	for _, s := range b.Shipping {
		sc := domain.ShippingConfig{ServiceCode: s.ServiceCode, International: s.International}
		var err error
		if sc.Cost, err = parseMoney(s.Cost); err != nil {
			return cfg, fmt.Errorf("shipping %s cost: %w", s.ServiceCode, err)
		}
		if sc.AdditionalCost, err = parseMoney(s.AdditionalCost); err != nil {
			return cfg, fmt.Errorf("shipping %s additional cost: %w", s.ServiceCode, err)
		}
		cfg.Shipping = append(cfg.Shipping, sc)
	}
	return cfg, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// PublishProductInput is the input for publishing one product.
type PublishProductInput struct {
	ID   int64 `path:"id" doc:"Core product id"`
	Body ListingConfigBody
}

// ListingStatus summarises a listing after a lifecycle operation.
type ListingStatus struct {
	ListingID string                  `json:"listing_id"`
	SKU       string                  `json:"sku"`
	Status    domain.PublishingStatus `json:"publishing_status"`
}

// PublishProductOutput is the response for publishing one product.
type PublishProductOutput struct {
	Body ListingStatus
}

// PublishBatchInput is the input for publishing several products with the
// same settings.
type PublishBatchInput struct {
	Body struct {
		ProductIDs []int64           `json:"product_ids" minItems:"1" doc:"Core product ids"`
		Config     ListingConfigBody `json:"config"                   doc:"Settings applied to every product"`
	}
}

// PublishBatchOutput maps product ids to their submitted listings.
type PublishBatchOutput struct {
	Body struct {
		Listings map[string]ListingStatus `json:"listings"`
	}
}

// UpdateProductInput is the input for re-snapshotting a product.
type UpdateProductInput struct {
	ID   int64 `path:"id" doc:"Core product id"`
	Body ListingConfigBody
}

// ListingOutput returns the full listing.
type ListingOutput struct {
	Body domain.Listing
}

// ProductPathInput names a core product.
type ProductPathInput struct {
	ID int64 `path:"id" doc:"Core product id"`
}

// --- Handlers ---

// Publish prepares the listing of a product and queues it for publishing.
func (h *ProductsHandler) Publish(ctx context.Context, input *PublishProductInput) (*PublishProductOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := input.Body.toDomain()
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	l, err := h.prepare(ctx, acc, input.ID, cfg)
	if err != nil {
		return nil, err
	}

	res, err := h.publisher.Submit(ctx, l.ID, acc)
	if err != nil {
		return nil, lifecycleError(err, "publishing")
	}
	if res.Outcome == publish.OutcomeValidationFailed {
		return nil, validationError(res.Validation)
	}

	return &PublishProductOutput{Body: statusOf(res.Listing)}, nil
}

// PublishBatch publishes several products. Any failure answers 400 with
// the messages of every failed product keyed by product id.
func (h *ProductsHandler) PublishBatch(ctx context.Context, input *PublishBatchInput) (*PublishBatchOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := input.Body.Config.toDomain()
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	failures := make(map[string][]string)
	products := make(map[string]string, len(input.Body.ProductIDs))
	listingIDs := make([]string, 0, len(input.Body.ProductIDs))
	for _, id := range input.Body.ProductIDs {
		key := strconv.FormatInt(id, 10)
		l, err := h.prepare(ctx, acc, id, cfg)
		if err != nil {
			failures[key] = []string{errorMessage(err)}
			continue
		}
		products[l.ID] = key
		listingIDs = append(listingIDs, l.ID)
	}

	submitted, errs := h.publisher.SubmitMany(ctx, listingIDs, acc)
	for listingID, err := range errs {
		var verrs publish.ValidationErrors
		if errors.As(err, &verrs) {
			failures[products[listingID]] = verrs.Messages()
			continue
		}
		failures[products[listingID]] = []string{err.Error()}
	}

	resp := &PublishBatchOutput{}
	resp.Body.Listings = make(map[string]ListingStatus, len(submitted))
	for listingID, l := range submitted {
		resp.Body.Listings[products[listingID]] = statusOf(l)
	}

	if len(failures) > 0 {
		return nil, NewDomainError(http.StatusBadRequest, KeyMultipleErrors, failures)
	}
	return resp, nil
}

// Update re-snapshots a product onto its listing. Price and quantity
// changes of a published listing are pushed to eBay in the background.
func (h *ProductsHandler) Update(ctx context.Context, input *UpdateProductInput) (*ListingOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := input.Body.toDomain()
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	p, err := h.product(ctx, acc, input.ID)
	if err != nil {
		return nil, err
	}
	l, err := h.publisher.Refresh(ctx, acc, p, cfg)
	if err != nil {
		return nil, lifecycleError(err, "updating product")
	}
	return &ListingOutput{Body: *l}, nil
}

// Unpublish ends the eBay listing of a product.
func (h *ProductsHandler) Unpublish(ctx context.Context, input *ProductPathInput) (*PublishProductOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}

	l, err := h.listings.GetActiveListing(ctx, acc.ID, input.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("product has no listing")
		}
		return nil, huma.Error500InternalServerError("loading listing failed: " + err.Error())
	}

	l, err = h.publisher.Unpublish(ctx, l.ID, acc)
	if err != nil {
		return nil, lifecycleError(err, "unpublishing")
	}
	return &PublishProductOutput{Body: statusOf(l)}, nil
}

func (h *ProductsHandler) product(ctx context.Context, acc *domain.Account, id int64) (*domain.Product, error) {
	p, err := h.products.GetProduct(ctx, acc.CoreAccountID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("product %d not found", id))
		}
		return nil, huma.Error502BadGateway("loading product failed: " + err.Error())
	}
	return p, nil
}

func (h *ProductsHandler) prepare(
	ctx context.Context,
	acc *domain.Account,
	id int64,
	cfg domain.ListingConfig,
) (*domain.Listing, error) {
	p, err := h.product(ctx, acc, id)
	if err != nil {
		return nil, err
	}
	l, err := h.publisher.Prepare(ctx, acc, p, cfg)
	if err != nil {
		return nil, huma.Error500InternalServerError("preparing listing failed: " + err.Error())
	}
	return l, nil
}

func statusOf(l *domain.Listing) ListingStatus {
	return ListingStatus{ListingID: l.ID, SKU: l.SKU, Status: l.Status}
}

// errorMessage returns the message of a huma error without its status.
func errorMessage(err error) string {
	var me *huma.ErrorModel
	if errors.As(err, &me) {
		return me.Detail
	}
	return err.Error()
}

// RegisterProductRoutes registers product lifecycle endpoints. mw
// authenticates the caller.
func RegisterProductRoutes(api huma.API, h *ProductsHandler, mw ...func(huma.Context, func(huma.Context))) {
	huma.Register(api, huma.Operation{
		OperationID: "publish-product",
		Method:      http.MethodPost,
		Path:        "/api/v1/products/{id}/publish",
		Summary:     "Publish a product",
		Description: "Prepares the listing of a core product and queues it for publishing on eBay. " +
			"Validation failures answer 400 with a stable error key.",
		Tags:        []string{"products"},
		Middlewares: mw,
		Errors: []int{
			http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusConflict,
		},
	}, h.Publish)

	huma.Register(api, huma.Operation{
		OperationID: "publish-products",
		Method:      http.MethodPost,
		Path:        "/api/v1/products/publish",
		Summary:     "Publish several products",
		Description: "Publishes every product with the same settings. Failures are reported per product id.",
		Tags:        []string{"products"},
		Middlewares: mw,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, h.PublishBatch)

	huma.Register(api, huma.Operation{
		OperationID: "update-product",
		Method:      http.MethodPut,
		Path:        "/api/v1/products/{id}",
		Summary:     "Update a product's listing",
		Description: "Takes a fresh snapshot of the core product and returns the full listing.",
		Tags:        []string{"products"},
		Middlewares: mw,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "unpublish-product",
		Method:      http.MethodPost,
		Path:        "/api/v1/products/{id}/unpublish",
		Summary:     "Unpublish a product",
		Description: "Ends the eBay listing of a product.",
		Tags:        []string{"products"},
		Middlewares: mw,
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict,
		},
	}, h.Unpublish)
}
