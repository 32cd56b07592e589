package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// maxCategoryDepth bounds the breadcrumb walk. eBay trees are at most six
// levels deep.
const maxCategoryDepth = 10

// CatalogStore defines the store methods required by the catalog handler.
type CatalogStore interface {
	GetCategory(ctx context.Context, country, id string) (*domain.Category, error)
	ListChildCategories(ctx context.Context, country, parentID string) ([]domain.Category, error)
	ListShippingServices(ctx context.Context, country string) ([]domain.ShippingService, error)
}

// CatalogHandler serves the mirrored eBay category tree and shipping
// services of the caller's marketplace.
type CatalogHandler struct {
	store CatalogStore
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(s CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: s}
}

// ListCategoriesInput selects the parent whose children are listed.
type ListCategoriesInput struct {
	ParentID string `query:"parent_id" doc:"Parent category id; root categories when empty"`
}

// ListCategoriesOutput holds the children and the path to the parent.
type ListCategoriesOutput struct {
	Body struct {
		Breadcrumb []domain.Category `json:"breadcrumb" doc:"Ancestors from the root down to the parent"`
		Categories []domain.Category `json:"categories"`
	}
}

// ListShippingServicesOutput holds the marketplace's shipping services.
type ListShippingServicesOutput struct {
	Body []domain.ShippingService
}

// ListCategories returns the children of a category.
func (h *CatalogHandler) ListCategories(ctx context.Context, input *ListCategoriesInput) (*ListCategoriesOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}

	breadcrumb, err := h.breadcrumb(ctx, acc.Country, input.ParentID)
	if err != nil {
		return nil, err
	}

	cats, err := h.store.ListChildCategories(ctx, acc.Country, input.ParentID)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing categories failed: " + err.Error())
	}
	if cats == nil {
		cats = []domain.Category{}
	}

	resp := &ListCategoriesOutput{}
	resp.Body.Breadcrumb = breadcrumb
	resp.Body.Categories = cats
	return resp, nil
}

func (h *CatalogHandler) breadcrumb(ctx context.Context, country, id string) ([]domain.Category, error) {
	path := []domain.Category{}
	for depth := 0; id != "" && depth < maxCategoryDepth; depth++ {
		c, err := h.store.GetCategory(ctx, country, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, huma.Error404NotFound("category " + id + " not found")
			}
			return nil, huma.Error500InternalServerError("loading category failed: " + err.Error())
		}
		path = append(path, *c)
		id = c.ParentID
	}
	slices.Reverse(path)
	return path, nil
}

// ListShippingServices returns the shipping services of the account's
// marketplace.
func (h *CatalogHandler) ListShippingServices(ctx context.Context, _ *struct{}) (*ListShippingServicesOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}

	svcs, err := h.store.ListShippingServices(ctx, acc.Country)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing shipping services failed: " + err.Error())
	}
	if svcs == nil {
		svcs = []domain.ShippingService{}
	}
	return &ListShippingServicesOutput{Body: svcs}, nil
}

// RegisterCatalogRoutes registers category and shipping endpoints.
func RegisterCatalogRoutes(api huma.API, h *CatalogHandler, mw ...func(huma.Context, func(huma.Context))) {
	huma.Register(api, huma.Operation{
		OperationID: "list-categories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List eBay categories",
		Description: "Returns the children of a category in the account's marketplace with the breadcrumb to it.",
		Tags:        []string{"catalog"},
		Middlewares: mw,
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, h.ListCategories)

	huma.Register(api, huma.Operation{
		OperationID: "list-shipping-services",
		Method:      http.MethodGet,
		Path:        "/api/v1/shipping/services",
		Summary:     "List shipping services",
		Description: "Returns the eBay shipping services of the account's marketplace.",
		Tags:        []string{"catalog"},
		Middlewares: mw,
		Errors:      []int{http.StatusUnauthorized},
	}, h.ListShippingServices)
}
